package response

// Códigos de negocio del módulo de asistencia (campo "code" del cuerpo de error).
// El cliente los usa para reconocer rechazos de aplicación.
const (
	CodeValidation     = 10001
	CodeInvalidWorker  = 20001
	CodeInvalidDate    = 20002
	CodeFutureDate     = 20003
	CodeInvalidTime    = 20004
	CodeInvalidExit    = 20005
	CodeWorkerNotFound = 20101
	CodeNoOpenEntry    = 20102
	CodeDuplicateEntry = 20201
	CodeAlreadyClosed  = 20202
	CodeExportDate     = 22001
	CodeExportEmpty    = 22101
)
