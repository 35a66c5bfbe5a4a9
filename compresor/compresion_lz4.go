package compresor

import (
	"bytes"
	"fmt"

	"github.com/cbiale/asciiwave/tipos"
	"github.com/pierrec/lz4/v4"
)

// CompresorLZ4 implementa compresión LZ4 en formato frame con checksum de contenido
type CompresorLZ4 struct {
	Limite int // máximo descomprimido en bytes; 0 = LimitePorDefecto
}

// Comprimir genera un frame LZ4
func (c *CompresorLZ4) Comprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}

	var frame bytes.Buffer
	escritor := lz4.NewWriter(&frame)
	opciones := []lz4.Option{lz4.ChecksumOption(true), lz4.SizeOption(uint64(len(datos)))}
	if err := escritor.Apply(opciones...); err != nil {
		return nil, &tipos.ErrorCompresion{Algoritmo: tipos.LZ4, Err: fmt.Errorf("opciones: %w", err)}
	}
	if _, err := escritor.Write(datos); err != nil {
		return nil, &tipos.ErrorCompresion{Algoritmo: tipos.LZ4, Err: fmt.Errorf("escribir datos: %w", err)}
	}
	if err := escritor.Close(); err != nil {
		return nil, &tipos.ErrorCompresion{Algoritmo: tipos.LZ4, Err: fmt.Errorf("cerrar frame: %w", err)}
	}
	return frame.Bytes(), nil
}

// Descomprimir lee un frame LZ4 verificando su checksum
func (c *CompresorLZ4) Descomprimir(datos []byte) ([]byte, error) {
	if len(datos) == 0 {
		return []byte{}, nil
	}

	resultado, err := leerConLimite(lz4.NewReader(bytes.NewReader(datos)), limiteEfectivo(c.Limite))
	if err != nil {
		return nil, &tipos.ErrorDescompresion{Algoritmo: tipos.LZ4, Err: err}
	}
	return resultado, nil
}
