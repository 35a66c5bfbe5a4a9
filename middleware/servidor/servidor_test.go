package servidor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/gin-gonic/gin"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cbiale/asciiwave/almacen"
	"github.com/cbiale/asciiwave/despachador"
	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/tipos"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// difusorFalso registra cada blob difundido
type difusorFalso struct {
	mu      sync.Mutex
	topicos []string
	blobs   [][]byte
	err     error
}

func (d *difusorFalso) PublicarComprimido(topico string, datos []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.topicos = append(d.topicos, topico)
	d.blobs = append(d.blobs, datos)
	return d.err
}

type entorno struct {
	servidor  *Servidor
	handler   http.Handler
	difusor   *difusorFalso
	almacen   *almacen.AlmacenPebble
	registros *observer.ObservedLogs
}

func nuevoEntorno(t *testing.T, config pipeline.Configuracion, maximoCuerpo int64) *entorno {
	t.Helper()

	p, err := pipeline.NuevoPipeline(config)
	require.NoError(t, err)

	almacenMem, err := almacen.AbrirPebble("marcos", vfs.NewMem())
	require.NoError(t, err)
	t.Cleanup(func() { _ = almacenMem.Cerrar() })

	core, registros := observer.New(zapcore.InfoLevel)
	difusor := &difusorFalso{}

	s, err := NuevoServidor(Opciones{
		Pipeline:     p,
		Almacen:      almacenMem,
		Difusores:    []middleware.Difusor{difusor},
		MaximoCuerpo: maximoCuerpo,
		Logger:       zap.New(core),
	})
	require.NoError(t, err)

	return &entorno{servidor: s, handler: s.Handler(), difusor: difusor, almacen: almacenMem, registros: registros}
}

func (e *entorno) solicitar(metodo, ruta string, cuerpo []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(metodo, ruta, bytes.NewReader(cuerpo))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

const marcoJSON = `{"filas":[
	[{"caracter":"A"},{"caracter":"A"},{"caracter":"A"},{"caracter":"B","color":[255,0,0]}],
	[{"caracter":" "},{"caracter":" "},{"caracter":" "},{"caracter":" "}]
]}`

func decodificarError(t *testing.T, rec *httptest.ResponseRecorder) despachador.RespuestaError {
	t.Helper()
	var respuesta despachador.RespuestaError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &respuesta))
	assert.NotEmpty(t, respuesta.Error)
	return respuesta
}

// ==================== HTTP ====================

func TestNuevoServidor_SinPipeline(t *testing.T) {
	_, err := NuevoServidor(Opciones{})
	assert.Error(t, err)
}

func TestHTTP_ComprimirDescomprimir(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{}, 0)

	rec := e.solicitar(http.MethodPost, "/comprimir", []byte(marcoJSON))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(CabeceraIdSolicitud))

	blob := rec.Body.Bytes()
	assert.Equal(t, strconv.Itoa(len(blob)), rec.Header().Get(CabeceraTamanoComprimido))
	assert.NotEmpty(t, rec.Header().Get(CabeceraTamanoOriginal))
	assert.NotEmpty(t, rec.Header().Get(CabeceraRazonCompresion))
	assert.Equal(t, almacen.ClaveContenido(blob), rec.Header().Get(CabeceraClaveMarco))

	// difundido en el tópico por defecto
	require.Len(t, e.difusor.blobs, 1)
	assert.Equal(t, TopicoPorDefecto, e.difusor.topicos[0])
	assert.Equal(t, blob, e.difusor.blobs[0])

	rec = e.solicitar(http.MethodPost, "/descomprimir", blob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var respuesta despachador.RespuestaDescomprimir
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &respuesta))
	assert.Equal(t, 4, respuesta.Ancho)
	assert.Equal(t, 2, respuesta.Alto)
	assert.Equal(t, "B", respuesta.Filas[0][3].Caracter)
	assert.Equal(t, &[3]uint8{255, 0, 0}, respuesta.Filas[0][3].Color)
	assert.Nil(t, respuesta.Filas[1][0].Color)

	// cada solicitud registra inicio y fin con el mismo id
	assert.Equal(t, 2, e.registros.FilterMessage("inicio de solicitud").Len())
	assert.Equal(t, 2, e.registros.FilterMessage("fin de solicitud").Len())
}

func TestHTTP_ObtenerMarco(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{CompresionBloque: tipos.ZSTD}, 0)

	rec := e.solicitar(http.MethodPost, "/comprimir", []byte(marcoJSON))
	require.Equal(t, http.StatusOK, rec.Code)
	clave := rec.Header().Get(CabeceraClaveMarco)

	rec2 := e.solicitar(http.MethodGet, "/marcos/"+clave, nil)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, rec.Body.Bytes(), rec2.Body.Bytes())

	rec3 := e.solicitar(http.MethodGet, "/marcos/"+almacen.ClaveContenido([]byte("otro")), nil)
	assert.Equal(t, http.StatusNotFound, rec3.Code)
	decodificarError(t, rec3)

	rec4 := e.solicitar(http.MethodGet, "/marcos/no-es-una-clave", nil)
	assert.Equal(t, http.StatusBadRequest, rec4.Code)
}

func TestHTTP_Errores(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{MaximoCeldas: 4}, 0)

	testCases := []struct {
		nombre string
		ruta   string
		cuerpo string
		estado int
		etapa  pipeline.Etapa
	}{
		{"JSON inválido", "/comprimir", `{"filas":`, http.StatusBadRequest, ""},
		{"carácter múltiple", "/comprimir", `{"filas":[[{"caracter":"AB"}]]}`, http.StatusBadRequest, ""},
		{"demasiadas celdas", "/comprimir", marcoJSON, http.StatusRequestEntityTooLarge, pipeline.EtapaValidacion},
		{"blob vacío", "/descomprimir", "", http.StatusBadRequest, pipeline.EtapaCompresion},
		{"blob corrupto", "/descomprimir", "\x04no es gzip", http.StatusBadRequest, pipeline.EtapaCompresion},
		{"algoritmo desconocido", "/descomprimir", "\x63abc", http.StatusBadRequest, pipeline.EtapaCompresion},
	}

	for _, tc := range testCases {
		t.Run(tc.nombre, func(t *testing.T) {
			rec := e.solicitar(http.MethodPost, tc.ruta, []byte(tc.cuerpo))
			assert.Equal(t, tc.estado, rec.Code)

			respuesta := decodificarError(t, rec)
			assert.Equal(t, string(tc.etapa), respuesta.Etapa)
			t.Logf("✓ %d %s", rec.Code, respuesta.Error)
		})
	}
	assert.Empty(t, e.difusor.blobs, "los errores no se difunden")
}

func TestHTTP_ComprimirFilaIrregular(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{}, 0)

	rec := e.solicitar(http.MethodPost, "/comprimir", []byte(`{"filas":[[{"caracter":"A"},{"caracter":"A"}],[{"caracter":"B"}]]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	decodificarError(t, rec)
	assert.Empty(t, rec.Header().Get(CabeceraClaveMarco))

	// el blob que el pipeline habría producido no quedó guardado ni difundido
	irregular := tipos.Marco{
		{tipos.NuevaCelda('A'), tipos.NuevaCelda('A')},
		{tipos.NuevaCelda('B')},
	}
	blob, err := e.servidor.pipeline.Comprimir(irregular)
	require.NoError(t, err)
	_, err = e.almacen.Obtener(context.Background(), almacen.ClaveContenido(blob))
	assert.ErrorIs(t, err, almacen.ErrNoEncontrado)
	assert.Empty(t, e.difusor.blobs)
}

func TestHTTP_CuerpoDemasiadoGrande(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{}, 16)

	rec := e.solicitar(http.MethodPost, "/comprimir", []byte(marcoJSON))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHTTP_DifusionFallidaNoInvalida(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{}, 0)
	e.difusor.err = errors.New("broker caído")

	rec := e.solicitar(http.MethodPost, "/comprimir", []byte(marcoJSON))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, e.registros.FilterMessage("error al difundir marco").Len())
}

func TestHTTP_Estado(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{CompresionBloque: tipos.Snappy, Formato: tipos.FormatoJSON}, 0)

	rec := e.solicitar(http.MethodGet, "/estado", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var estado despachador.RespuestaEstado
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &estado))
	assert.Equal(t, "Snappy", estado.CompresionBloque)
	assert.Equal(t, "JSON", estado.Formato)
	assert.True(t, estado.Almacen)
	assert.Equal(t, 1, estado.Difusores)
}

func TestHTTP_RutaDesconocida(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{}, 0)
	assert.Equal(t, http.StatusNotFound, e.solicitar(http.MethodGet, "/convert-image", nil).Code)
}

// ==================== CoAP ====================

func TestCoAP_ComprimirDescomprimir(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{CompresionBloque: tipos.LZ4}, 0)
	ctx := context.Background()

	respuesta := e.servidor.procesarCoAP(ctx, "/comprimir", codes.POST, []byte(marcoJSON))
	require.Equal(t, codes.Content, respuesta.codigo, string(respuesta.cuerpo))
	assert.Equal(t, message.AppOctets, respuesta.formato)
	require.Len(t, e.difusor.blobs, 1)

	respuesta = e.servidor.procesarCoAP(ctx, "/descomprimir", codes.POST, respuesta.cuerpo)
	require.Equal(t, codes.Content, respuesta.codigo)
	assert.Equal(t, message.AppJSON, respuesta.formato)

	var marco despachador.RespuestaDescomprimir
	require.NoError(t, json.Unmarshal(respuesta.cuerpo, &marco))
	assert.Equal(t, 4, marco.Ancho)

	clave := almacen.ClaveContenido(e.difusor.blobs[0])
	respuesta = e.servidor.procesarCoAP(ctx, "/marcos/"+clave, codes.GET, nil)
	assert.Equal(t, codes.Content, respuesta.codigo)
	assert.Equal(t, e.difusor.blobs[0], respuesta.cuerpo)
}

func TestCoAP_Errores(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{MaximoCeldas: 2}, 64)
	ctx := context.Background()

	testCases := []struct {
		nombre string
		ruta   string
		metodo codes.Code
		cuerpo string
		codigo codes.Code
	}{
		{"método", "/comprimir", codes.GET, "", codes.MethodNotAllowed},
		{"ruta", "/desconocida", codes.POST, "", codes.NotFound},
		{"JSON inválido", "/comprimir", codes.POST, "{", codes.BadRequest},
		{"demasiadas celdas", "/comprimir", codes.POST, `{"filas":[[{"caracter":"a"},{"caracter":"b"},{"caracter":"c"}]]}`, codes.RequestEntityTooLarge},
		{"cuerpo grande", "/comprimir", codes.POST, strings.Repeat(" ", 65), codes.RequestEntityTooLarge},
		{"blob corrupto", "/descomprimir", codes.POST, "\x02zz", codes.BadRequest},
		{"marco ausente", "/marcos/" + almacen.ClaveContenido(nil), codes.GET, "", codes.NotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.nombre, func(t *testing.T) {
			respuesta := e.servidor.procesarCoAP(ctx, tc.ruta, tc.metodo, []byte(tc.cuerpo))
			assert.Equal(t, tc.codigo, respuesta.codigo, string(respuesta.cuerpo))
		})
	}
}

func TestCoAP_Estado(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{}, 0)

	respuesta := e.servidor.procesarCoAP(context.Background(), "/estado", codes.GET, nil)
	require.Equal(t, codes.Content, respuesta.codigo)

	var estado despachador.RespuestaEstado
	require.NoError(t, json.Unmarshal(respuesta.cuerpo, &estado))
	assert.Equal(t, "Gzip", estado.CompresionBloque)
	assert.Equal(t, 0, estado.Observadores)
}

func TestCoAP_ActualizarObservador(t *testing.T) {
	e := nuevoEntorno(t, pipeline.Configuracion{}, 0)
	token := []byte{0xA1, 0xB2}

	alta := e.servidor.actualizarObservador(e.servidor.topico, nil, token, 0)
	assert.GreaterOrEqual(t, alta, int64(0), "el alta responde con número de secuencia")
	assert.Equal(t, 1, e.servidor.observadores.Cantidad())

	baja := e.servidor.actualizarObservador(e.servidor.topico, nil, token, 1)
	assert.Equal(t, int64(-1), baja, "la baja responde sin opción Observe")
	assert.Equal(t, 0, e.servidor.observadores.Cantidad())
	t.Logf("✓ alta con secuencia %d, baja sin Observe", alta)
}

func TestObservadoresCoAP_SinObservadores(t *testing.T) {
	o := nuevosObservadoresCoAP()
	assert.NoError(t, o.PublicarComprimido("/t", []byte{1}))
	assert.Equal(t, 0, o.Cantidad())

	o.Eliminar("/t", []byte{9})
	assert.Equal(t, 0, o.Cantidad())
}

func TestClasificarError(t *testing.T) {
	testCases := []struct {
		err    error
		estado int
	}{
		{&errorCliente{errors.New("x")}, http.StatusBadRequest},
		{almacen.ErrClaveInvalida, http.StatusBadRequest},
		{almacen.ErrNoEncontrado, http.StatusNotFound},
		{errCuerpoGrande, http.StatusRequestEntityTooLarge},
		{&pipeline.ErrorEtapa{Etapa: pipeline.EtapaValidacion, Err: pipeline.ErrMarcoDemasiadoGrande}, http.StatusRequestEntityTooLarge},
		{errors.New("disco lleno"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		estado, respuesta := clasificarError(tc.err)
		assert.Equal(t, tc.estado, estado, tc.err.Error())
		assert.Equal(t, tc.err.Error(), respuesta.Error)
	}

	assert.Equal(t, codes.BadRequest, codigoCoAP(http.StatusBadRequest))
	assert.Equal(t, codes.InternalServerError, codigoCoAP(http.StatusTeapot))
}
