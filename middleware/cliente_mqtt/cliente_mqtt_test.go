package cliente_mqtt

import (
	"testing"

	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/tipos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mensajeFalso implementa mqtt.Message
type mensajeFalso struct {
	topico  string
	payload []byte
}

func (m *mensajeFalso) Duplicate() bool   { return false }
func (m *mensajeFalso) Qos() byte         { return 0 }
func (m *mensajeFalso) Retained() bool    { return false }
func (m *mensajeFalso) Topic() string     { return m.topico }
func (m *mensajeFalso) MessageID() uint16 { return 1 }
func (m *mensajeFalso) Payload() []byte   { return m.payload }
func (m *mensajeFalso) Ack()              {}

func TestConfiguracion(t *testing.T) {
	cfg := Configuracion{Broker: "tcp://localhost:1883"}
	cfg.AplicarDefaults()
	assert.NotEmpty(t, cfg.ClienteID)
	assert.Equal(t, "/asciiwave/marcos", cfg.Topico)
	assert.NoError(t, cfg.Validar())

	assert.Error(t, Configuracion{}.Validar())
	assert.Error(t, Configuracion{Broker: "tcp://x:1883", QoS: 3}.Validar())
}

func TestManejadorMensajes(t *testing.T) {
	p, err := pipeline.NuevoPipeline(pipeline.Configuracion{})
	require.NoError(t, err)
	core, registros := observer.New(zapcore.InfoLevel)

	var recibidos []tipos.Marco
	manejador := ManejadorMensajes(p, zap.New(core), func(topico string, marco tipos.Marco) {
		assert.Equal(t, "/marcos", topico)
		recibidos = append(recibidos, marco)
	})

	marco := tipos.Marco{{tipos.NuevaCelda('a'), tipos.NuevaCelda('a')}}
	datos, err := middleware.Empaquetar(p, "/marcos", marco)
	require.NoError(t, err)
	interno, err := middleware.CodificarMensaje(middleware.Mensaje{Interno: true})
	require.NoError(t, err)

	manejador(nil, &mensajeFalso{topico: "/marcos", payload: datos})
	manejador(nil, &mensajeFalso{topico: "/marcos", payload: interno})
	manejador(nil, &mensajeFalso{topico: "/marcos", payload: []byte{0xff}})

	require.Len(t, recibidos, 1)
	assert.True(t, marco.Igual(recibidos[0]))
	assert.Equal(t, 1, registros.FilterMessage("mensaje MQTT descartado").Len())
}
