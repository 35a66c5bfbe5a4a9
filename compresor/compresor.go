package compresor

import (
	"errors"
	"fmt"
	"io"

	"github.com/cbiale/asciiwave/tipos"
)

// LimitePorDefecto es el tamaño máximo que un compresor acepta producir al
// descomprimir cuando su campo Limite es cero
const LimitePorDefecto = 256 << 20

// ErrLimiteExcedido indica que el flujo se expande más allá del límite configurado
var ErrLimiteExcedido = errors.New("el contenido descomprimido excede el límite")

func limiteEfectivo(limite int) int {
	if limite <= 0 {
		return LimitePorDefecto
	}
	return limite
}

// leerConLimite lee r completo sin pasar de limite bytes
func leerConLimite(r io.Reader, limite int) ([]byte, error) {
	datos, err := io.ReadAll(io.LimitReader(r, int64(limite)+1))
	if err != nil {
		return nil, err
	}
	if len(datos) > limite {
		return nil, fmt.Errorf("%w (%d bytes)", ErrLimiteExcedido, limite)
	}
	return datos, nil
}

// CompresorBloque es un compresor genérico y sin pérdida de buffers de bytes (nivel 2).
//
// Comprimir acepta cualquier secuencia de bytes y solo falla por errores internos.
// Descomprimir falla con *tipos.ErrorDescompresion ante un flujo malformado o truncado.
// Un buffer vacío se comprime a un flujo vacío, que se descomprime a un buffer vacío.
// Descomprimir nunca produce más bytes que el límite del compresor y reporta
// ErrLimiteExcedido (envuelto) en ese caso.
//
// Todas las implementaciones son seguras para uso concurrente.
type CompresorBloque interface {
	Comprimir(datos []byte) ([]byte, error)
	Descomprimir(datos []byte) ([]byte, error)
}

// ObtenerCompresorBloque retorna la implementación de un algoritmo de nivel 2
func ObtenerCompresorBloque(tipo tipos.TipoCompresionBloque) (CompresorBloque, error) {
	switch tipo {
	case tipos.Ninguna:
		return &CompresorNinguno{}, nil
	case tipos.LZ4:
		return &CompresorLZ4{}, nil
	case tipos.ZSTD:
		return &CompresorZSTD{}, nil
	case tipos.Snappy:
		return &CompresorSnappy{}, nil
	case tipos.Gzip:
		return &CompresorGzip{}, nil
	default:
		return nil, fmt.Errorf("algoritmo de compresión de bloque no soportado: %q", string(tipo))
	}
}

// RazonCompresion retorna len(comprimido) / len(original).
// Para un original vacío retorna 0.0. Es un valor informativo, no de control.
func RazonCompresion(original, comprimido []byte) float64 {
	if len(original) == 0 {
		return 0.0
	}
	return float64(len(comprimido)) / float64(len(original))
}
