package compresor

import (
	"fmt"

	"github.com/cbiale/asciiwave/tipos"
	"github.com/klauspost/compress/snappy"
)

// CompresorSnappy implementa compresión Snappy en formato bloque.
// El bloque declara su longitud descomprimida, que se controla antes de decodificar.
type CompresorSnappy struct {
	Limite int // máximo descomprimido en bytes; 0 = LimitePorDefecto
}

// Comprimir codifica los datos en un único bloque
func (c *CompresorSnappy) Comprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}
	return snappy.Encode(nil, datos), nil
}

// Descomprimir decodifica un bloque Snappy
func (c *CompresorSnappy) Descomprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}

	longitud, err := snappy.DecodedLen(datos)
	if err != nil {
		return nil, &tipos.ErrorDescompresion{Algoritmo: tipos.Snappy, Err: err}
	}
	if limite := limiteEfectivo(c.Limite); longitud > limite {
		return nil, &tipos.ErrorDescompresion{
			Algoritmo: tipos.Snappy,
			Err:       fmt.Errorf("%w: el bloque declara %d bytes (%d permitidos)", ErrLimiteExcedido, longitud, limite),
		}
	}

	resultado, err := snappy.Decode(nil, datos)
	if err != nil {
		return nil, &tipos.ErrorDescompresion{Algoritmo: tipos.Snappy, Err: err}
	}
	return resultado, nil
}
