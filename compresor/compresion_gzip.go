package compresor

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cbiale/asciiwave/tipos"
	"github.com/klauspost/compress/gzip"
)

// escritores gzip reutilizados entre llamadas
var escritoresGzip = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// CompresorGzip implementa compresión Gzip (RFC 1952)
type CompresorGzip struct {
	Limite int // máximo descomprimido en bytes; 0 = LimitePorDefecto
}

// Comprimir genera un flujo gzip completo
func (c *CompresorGzip) Comprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	escritor := escritoresGzip.Get().(*gzip.Writer)
	defer escritoresGzip.Put(escritor)
	escritor.Reset(&buf)

	if _, err := escritor.Write(datos); err != nil {
		return nil, &tipos.ErrorCompresion{Algoritmo: tipos.Gzip, Err: fmt.Errorf("escribir datos: %w", err)}
	}
	if err := escritor.Close(); err != nil {
		return nil, &tipos.ErrorCompresion{Algoritmo: tipos.Gzip, Err: fmt.Errorf("cerrar flujo: %w", err)}
	}
	return buf.Bytes(), nil
}

// Descomprimir lee un flujo gzip; el flujo debe estar completo
func (c *CompresorGzip) Descomprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}

	lector, err := gzip.NewReader(bytes.NewReader(datos))
	if err != nil {
		return nil, &tipos.ErrorDescompresion{Algoritmo: tipos.Gzip, Err: fmt.Errorf("encabezado: %w", err)}
	}
	defer lector.Close()

	resultado, err := leerConLimite(lector, limiteEfectivo(c.Limite))
	if err != nil {
		return nil, &tipos.ErrorDescompresion{Algoritmo: tipos.Gzip, Err: err}
	}
	return resultado, nil
}
