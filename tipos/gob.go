package tipos

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// SerializarGob codifica un único valor con encoding/gob.
// El flujo incluye la descripción de tipos, por lo que es autocontenido.
func SerializarGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializarGob decodifica en v un flujo producido por SerializarGob.
// El flujo debe contener exactamente un valor.
func DeserializarGob(datos []byte, v any) error {
	lector := bytes.NewReader(datos)
	if err := gob.NewDecoder(lector).Decode(v); err != nil {
		return fmt.Errorf("gob: %w", err)
	}
	if sobrantes := lector.Len(); sobrantes > 0 {
		return fmt.Errorf("gob: %d bytes sobrantes después del valor", sobrantes)
	}
	return nil
}
