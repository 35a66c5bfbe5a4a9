package almacen

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// Errores comunes a todas las implementaciones
var (
	ErrNoEncontrado      = errors.New("marco no encontrado")
	ErrClaveInvalida     = errors.New("clave de marco inválida")
	ErrContenidoAlterado = errors.New("el contenido no coincide con su clave")
)

// LongitudClave es la longitud en caracteres hexadecimales de una clave de contenido
const LongitudClave = 2 * 32

// Almacen guarda blobs de marcos comprimidos direccionados por contenido.
//
// Guardar retorna la clave del blob; guardar dos veces el mismo blob produce la
// misma clave y no duplica datos. Obtener retorna ErrNoEncontrado si la clave no
// existe. Eliminar no falla si la clave no existe.
type Almacen interface {
	Guardar(ctx context.Context, datos []byte) (string, error)
	Obtener(ctx context.Context, clave string) ([]byte, error)
	Eliminar(ctx context.Context, clave string) error
}

// ClaveContenido retorna el BLAKE3-256 de los datos en hexadecimal
func ClaveContenido(datos []byte) string {
	suma := blake3.Sum256(datos)
	return hex.EncodeToString(suma[:])
}

// ValidarClave verifica que la clave tenga la forma de una clave de contenido
func ValidarClave(clave string) error {
	if len(clave) != LongitudClave {
		return fmt.Errorf("%w: longitud %d", ErrClaveInvalida, len(clave))
	}
	for _, c := range clave {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return fmt.Errorf("%w: carácter %q", ErrClaveInvalida, c)
		}
	}
	return nil
}

// verificarContenido comprueba que los datos leídos correspondan a la clave pedida
func verificarContenido(clave string, datos []byte) error {
	if ClaveContenido(datos) != clave {
		return fmt.Errorf("%w: %s", ErrContenidoAlterado, clave)
	}
	return nil
}
