package errors

import "errors"

var (
	// ErrOptimisticLock la fila cambió desde que se leyó (p. ej. una salida ya registrada)
	ErrOptimisticLock = errors.New("el registro fue modificado por otra operación, recargue e intente de nuevo")

	// ErrDuplicateKey violación de una restricción única
	ErrDuplicateKey = errors.New("registro duplicado")
)
