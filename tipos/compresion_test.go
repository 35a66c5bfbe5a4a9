package tipos

import (
	"errors"
	"testing"
)

// TestTipoCompresionBloque_Codigo verifica que cada algoritmo tiene un código único e invertible
func TestTipoCompresionBloque_Codigo(t *testing.T) {
	vistos := map[byte]TipoCompresionBloque{}
	for _, tipo := range TiposCompresionBloque() {
		codigo, err := tipo.Codigo()
		if err != nil {
			t.Fatalf("Codigo(%s) falló: %v", tipo, err)
		}
		if previo, repetido := vistos[codigo]; repetido {
			t.Fatalf("Código %d repetido entre %s y %s", codigo, previo, tipo)
		}
		vistos[codigo] = tipo

		recuperado, err := CompresionBloqueDesdeCodigo(codigo)
		if err != nil {
			t.Fatalf("CompresionBloqueDesdeCodigo(%d) falló: %v", codigo, err)
		}
		if recuperado != tipo {
			t.Errorf("Código %d: esperado %s, obtenido %s", codigo, tipo, recuperado)
		}
	}
	t.Logf("✓ %d algoritmos con códigos únicos", len(vistos))
}

// TestTipoCompresionBloque_CodigosEstables verifica las constantes de protocolo
func TestTipoCompresionBloque_CodigosEstables(t *testing.T) {
	esperados := map[TipoCompresionBloque]byte{Ninguna: 0, LZ4: 1, ZSTD: 2, Snappy: 3, Gzip: 4}
	for tipo, esperado := range esperados {
		codigo, _ := tipo.Codigo()
		if codigo != esperado {
			t.Errorf("%s: código esperado %d, obtenido %d", tipo, esperado, codigo)
		}
	}
}

// TestTipoCompresionBloque_Desconocido verifica el rechazo de valores desconocidos
func TestTipoCompresionBloque_Desconocido(t *testing.T) {
	if err := TipoCompresionBloque("Brotli").Validar(); err == nil {
		t.Error("Se esperaba error para algoritmo desconocido")
	}
	if _, err := CompresionBloqueDesdeCodigo(200); err == nil {
		t.Error("Se esperaba error para código desconocido")
	}
}

// TestFormatoSerializacion_Codigo verifica la ida y vuelta de códigos de formato
func TestFormatoSerializacion_Codigo(t *testing.T) {
	for _, formato := range FormatosSerializacion() {
		codigo, err := formato.Codigo()
		if err != nil {
			t.Fatalf("Codigo(%s) falló: %v", formato, err)
		}
		recuperado, err := FormatoDesdeCodigo(codigo)
		if err != nil || recuperado != formato {
			t.Errorf("Formato %s: recuperado %s, err %v", formato, recuperado, err)
		}
	}

	if err := FormatoSerializacion("XML").Validar(); err == nil {
		t.Error("Se esperaba error para formato desconocido")
	}
	if _, err := FormatoDesdeCodigo(0); err == nil {
		t.Error("Se esperaba error para código 0")
	}
}

// TestErrores_Unwrap verifica que los errores envolventes exponen la causa
func TestErrores_Unwrap(t *testing.T) {
	causa := errors.New("flujo truncado")

	var err error = &ErrorDescompresion{Algoritmo: Gzip, Err: causa}
	if !errors.Is(err, causa) {
		t.Error("ErrorDescompresion debería envolver la causa")
	}

	err = &ErrorCompresion{Algoritmo: ZSTD, Err: causa}
	if !errors.Is(err, causa) {
		t.Error("ErrorCompresion debería envolver la causa")
	}

	err = &ErrorDeserializacion{Motivo: "payload inválido", Err: causa}
	if !errors.Is(err, causa) {
		t.Error("ErrorDeserializacion debería envolver la causa")
	}

	sinCausa := &ErrorDeserializacion{Motivo: "encabezado truncado"}
	if sinCausa.Error() != "error de deserialización: encabezado truncado" {
		t.Errorf("Mensaje inesperado: %s", sinCausa.Error())
	}
}

// TestErrores_Estructura verifica que los errores estructurales exponen índices y tamaños
func TestErrores_Estructura(t *testing.T) {
	var err error = &ErrorLongitudFila{Fila: 2, Obtenido: 9, Esperado: 10}

	var longitud *ErrorLongitudFila
	if !errors.As(err, &longitud) {
		t.Fatal("errors.As debería encontrar ErrorLongitudFila")
	}
	if longitud.Fila != 2 || longitud.Obtenido != 9 || longitud.Esperado != 10 {
		t.Errorf("Campos incorrectos: %+v", longitud)
	}

	filas := &ErrorCantidadFilas{Obtenido: 1, Esperado: 3}
	if filas.Error() != "el marco tiene 1 filas pero se esperaban 3" {
		t.Errorf("Mensaje inesperado: %s", filas.Error())
	}

	vacia := &ErrorCorridaVacia{Fila: 0, Corrida: 4}
	if vacia.Error() != "corrida 4 de la fila 0 tiene cantidad 0" {
		t.Errorf("Mensaje inesperado: %s", vacia.Error())
	}
}
