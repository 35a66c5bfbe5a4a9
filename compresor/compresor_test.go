package compresor

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cbiale/asciiwave/tipos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// datosRepetitivos simula la forma serializada de un marco con poca variación
func datosRepetitivos() []byte {
	return bytes.Repeat([]byte("AAAAAAAAAABBBBBBBBBB ~~~~ "), 400)
}

func TestObtenerCompresorBloque(t *testing.T) {
	for _, tipo := range tipos.TiposCompresionBloque() {
		compresor, err := ObtenerCompresorBloque(tipo)
		require.NoError(t, err, "algoritmo %s", tipo)
		require.NotNil(t, compresor)
	}

	_, err := ObtenerCompresorBloque("Brotli")
	assert.Error(t, err)
}

// TestCompresoresBloque_IdaVuelta verifica decompress(compress(b)) == b para todos los algoritmos
func TestCompresoresBloque_IdaVuelta(t *testing.T) {
	aleatorios := make([]byte, 4096)
	_, err := rand.Read(aleatorios)
	require.NoError(t, err)

	entradas := map[string][]byte{
		"un byte":     {0x42},
		"texto":       []byte("hola mundo ascii"),
		"repetitivos": datosRepetitivos(),
		"aleatorios":  aleatorios,
		"ceros":       make([]byte, 10_000),
	}

	for _, tipo := range tipos.TiposCompresionBloque() {
		compresor, err := ObtenerCompresorBloque(tipo)
		require.NoError(t, err)

		for nombre, datos := range entradas {
			t.Run(string(tipo)+"/"+nombre, func(t *testing.T) {
				comprimido, err := compresor.Comprimir(datos)
				require.NoError(t, err)

				descomprimido, err := compresor.Descomprimir(comprimido)
				require.NoError(t, err)
				assert.Equal(t, datos, descomprimido)
			})
		}
	}
}

// TestCompresoresBloque_Vacio verifica que un buffer vacío ida y vuelta sigue vacío
func TestCompresoresBloque_Vacio(t *testing.T) {
	for _, tipo := range tipos.TiposCompresionBloque() {
		compresor, err := ObtenerCompresorBloque(tipo)
		require.NoError(t, err)

		comprimido, err := compresor.Comprimir([]byte{})
		require.NoError(t, err, "algoritmo %s", tipo)

		descomprimido, err := compresor.Descomprimir(comprimido)
		require.NoError(t, err, "algoritmo %s", tipo)
		assert.NotNil(t, descomprimido)
		assert.Empty(t, descomprimido, "algoritmo %s", tipo)
	}
}

// TestCompresoresBloque_DatosRepetitivos verifica razón < 1.0 sobre datos repetitivos
func TestCompresoresBloque_DatosRepetitivos(t *testing.T) {
	datos := datosRepetitivos()

	for _, tipo := range tipos.TiposCompresionBloque() {
		if tipo == tipos.Ninguna {
			continue
		}
		compresor, err := ObtenerCompresorBloque(tipo)
		require.NoError(t, err)

		comprimido, err := compresor.Comprimir(datos)
		require.NoError(t, err)

		razon := RazonCompresion(datos, comprimido)
		assert.Less(t, razon, 1.0, "algoritmo %s", tipo)
		t.Logf("✓ %s: %d → %d bytes (razón %.4f)", tipo, len(datos), len(comprimido), razon)
	}
}

// TestCompresoresBloque_FlujoMalformado verifica ErrorDescompresion ante basura
func TestCompresoresBloque_FlujoMalformado(t *testing.T) {
	basura := []byte("esto no es un flujo valido de ningun compresor")

	for _, tipo := range []tipos.TipoCompresionBloque{tipos.LZ4, tipos.ZSTD, tipos.Snappy, tipos.Gzip} {
		compresor, err := ObtenerCompresorBloque(tipo)
		require.NoError(t, err)

		_, err = compresor.Descomprimir(basura)
		var errDescompresion *tipos.ErrorDescompresion
		require.ErrorAs(t, err, &errDescompresion, "algoritmo %s", tipo)
		assert.Equal(t, tipo, errDescompresion.Algoritmo)
		t.Logf("✓ %s: %v", tipo, err)
	}
}

// TestCompresoresBloque_FlujoTruncado verifica ErrorDescompresion ante un flujo cortado
func TestCompresoresBloque_FlujoTruncado(t *testing.T) {
	datos := datosRepetitivos()

	for _, tipo := range []tipos.TipoCompresionBloque{tipos.ZSTD, tipos.Gzip} {
		compresor, err := ObtenerCompresorBloque(tipo)
		require.NoError(t, err)

		comprimido, err := compresor.Comprimir(datos)
		require.NoError(t, err)

		_, err = compresor.Descomprimir(comprimido[:len(comprimido)/2])
		var errDescompresion *tipos.ErrorDescompresion
		assert.ErrorAs(t, err, &errDescompresion, "algoritmo %s", tipo)
	}
}

// TestCompresorNinguno_Copia verifica que la salida no comparte memoria con la entrada
func TestCompresorNinguno_Copia(t *testing.T) {
	compresor := &CompresorNinguno{}
	datos := []byte{1, 2, 3}

	comprimido, err := compresor.Comprimir(datos)
	require.NoError(t, err)
	datos[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, comprimido)
}

func TestRazonCompresion(t *testing.T) {
	assert.Equal(t, 0.0, RazonCompresion(nil, nil))
	assert.Equal(t, 0.0, RazonCompresion([]byte{}, []byte{1, 2, 3}))
	assert.Equal(t, 0.5, RazonCompresion(make([]byte, 10), make([]byte, 5)))
	assert.Equal(t, 2.0, RazonCompresion(make([]byte, 2), make([]byte, 4)))
}

// TestCompresoresBloque_Limite verifica que ningún compresor expande más allá de su límite
func TestCompresoresBloque_Limite(t *testing.T) {
	datos := bytes.Repeat([]byte("A"), 4096)
	limitados := map[tipos.TipoCompresionBloque]CompresorBloque{
		tipos.Gzip:   &CompresorGzip{Limite: 1024},
		tipos.LZ4:    &CompresorLZ4{Limite: 1024},
		tipos.ZSTD:   &CompresorZSTD{Limite: 1024},
		tipos.Snappy: &CompresorSnappy{Limite: 1024},
	}

	for tipo, limitado := range limitados {
		t.Run(string(tipo), func(t *testing.T) {
			normal, err := ObtenerCompresorBloque(tipo)
			require.NoError(t, err)
			comprimido, err := normal.Comprimir(datos)
			require.NoError(t, err)

			_, err = limitado.Descomprimir(comprimido)
			var errDescompresion *tipos.ErrorDescompresion
			require.ErrorAs(t, err, &errDescompresion)
			assert.Equal(t, tipo, errDescompresion.Algoritmo)
			assert.ErrorIs(t, err, ErrLimiteExcedido)

			// justo en el límite se acepta
			exacto, err := normal.Comprimir(datos[:1024])
			require.NoError(t, err)
			resultado, err := limitado.Descomprimir(exacto)
			require.NoError(t, err)
			assert.Len(t, resultado, 1024)
			t.Logf("✓ %s: límite de 1024 bytes respetado", tipo)
		})
	}
}
