package registro

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfiguracion_Defaults(t *testing.T) {
	config := Configuracion{}
	config.AplicarDefaults()

	assert.Equal(t, "info", config.Nivel)
	assert.Equal(t, "stderr", config.Archivo)
	assert.Equal(t, FormatoJSON, config.Formato)
	assert.NoError(t, config.Validar())
}

func TestConfiguracion_Validar(t *testing.T) {
	testCases := []struct {
		nombre string
		config Configuracion
		valida bool
	}{
		{"debug consola", Configuracion{Nivel: "debug", Formato: "consola"}, true},
		{"warn json", Configuracion{Nivel: "warn", Formato: "json"}, true},
		{"error auto", Configuracion{Nivel: "error", Formato: "auto"}, true},
		{"nivel desconocido", Configuracion{Nivel: "verboso", Formato: "json"}, false},
		{"formato desconocido", Configuracion{Nivel: "info", Formato: "xml"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.nombre, func(t *testing.T) {
			err := tc.config.Validar()
			if tc.valida {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNuevoLogger_Archivo(t *testing.T) {
	ruta := filepath.Join(t.TempDir(), "asciiwave.log")

	logger, err := NuevoLogger(Configuracion{Nivel: "warn", Archivo: ruta})
	require.NoError(t, err)

	logger.Info("no debe aparecer")
	logger.Warn("marco rechazado", zap.Int("celdas", 42))
	require.NoError(t, logger.Sync())

	contenido, err := os.ReadFile(ruta)
	require.NoError(t, err)
	assert.NotContains(t, string(contenido), "no debe aparecer")
	assert.Contains(t, string(contenido), `"msg":"marco rechazado"`)
	assert.Contains(t, string(contenido), `"celdas":42`)
}

func TestNuevoLogger_Invalido(t *testing.T) {
	_, err := NuevoLogger(Configuracion{Nivel: "verboso"})
	assert.Error(t, err)
}

func TestLogger_Global(t *testing.T) {
	primero := Logger()
	require.NotNil(t, primero)
	assert.Same(t, primero, Logger())

	// la inicialización ya ocurrió: una configuración inválida no la reemplaza
	assert.NoError(t, Inicializar(Configuracion{Nivel: "verboso"}))
	assert.Same(t, primero, Logger())
}

func TestSolicitud_InicioYFin(t *testing.T) {
	core, registros := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	sol := NuevaSolicitud(logger, "comprimir")
	_, err := uuid.Parse(sol.ID)
	require.NoError(t, err)

	sol.Info("marco codificado", zap.Int("corridas", 3))
	sol.Error("fallo al guardar", errors.New("disco lleno"))
	sol.Fin()
	sol.Fin()

	entradas := registros.All()
	require.Len(t, entradas, 4, "Fin solo registra una vez")

	assert.Equal(t, "inicio de solicitud", entradas[0].Message)
	assert.Equal(t, "marco codificado", entradas[1].Message)
	assert.Equal(t, "fallo al guardar", entradas[2].Message)
	assert.Equal(t, zapcore.ErrorLevel, entradas[2].Level)
	assert.Equal(t, "fin de solicitud", entradas[3].Message)

	for _, entrada := range entradas {
		campos := entrada.ContextMap()
		assert.Equal(t, sol.ID, campos["id"])
		assert.Equal(t, "comprimir", campos["operacion"])
	}
	assert.Contains(t, entradas[3].ContextMap(), "duracion")
	assert.Equal(t, "disco lleno", entradas[2].ContextMap()["error"])
	t.Logf("✓ %d líneas con id %s", len(entradas), sol.ID)
}

func TestSolicitud_FinConDefer(t *testing.T) {
	core, registros := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	operacion := func() error {
		sol := NuevaSolicitud(logger, "descomprimir")
		defer sol.Fin()
		return errors.New("blob inválido")
	}

	require.Error(t, operacion())
	assert.Equal(t, 1, registros.FilterMessage("fin de solicitud").Len())
}

func TestSolicitud_IdsDistintos(t *testing.T) {
	logger := zap.NewNop()
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sol := NuevaSolicitud(logger, "x")
		assert.False(t, ids[sol.ID])
		ids[sol.ID] = true
		assert.False(t, strings.Contains(sol.ID, " "))
	}
}

func TestFormatoEfectivo(t *testing.T) {
	archivo := filepath.Join(t.TempDir(), "registro.log")

	assert.Equal(t, FormatoConsola, formatoEfectivo(Configuracion{Formato: "Consola"}))
	assert.Equal(t, FormatoJSON, formatoEfectivo(Configuracion{Formato: "json", Archivo: "stderr"}))
	// un archivo nunca es una terminal
	assert.Equal(t, FormatoJSON, formatoEfectivo(Configuracion{Formato: FormatoAutomatico, Archivo: archivo}))
	t.Logf("✓ Formato automático resuelto")
}
