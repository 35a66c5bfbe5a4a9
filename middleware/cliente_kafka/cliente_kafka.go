package cliente_kafka

import (
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/tipos"
)

// Configuracion del productor Kafka
type Configuracion struct {
	Brokers    []string `yaml:"brokers"`    // ej: [localhost:9092]
	Topico     string   `yaml:"topico"`     // tópico donde el servidor difunde los marcos
	Reintentos int      `yaml:"reintentos"` // reintentos de envío; 0 = 2
}

// AplicarDefaults completa los campos vacíos
func (c *Configuracion) AplicarDefaults() {
	if c.Topico == "" {
		c.Topico = "/asciiwave/marcos"
	}
	if c.Reintentos == 0 {
		c.Reintentos = 2
	}
}

// Validar verifica la configuración
func (c Configuracion) Validar() error {
	if len(c.Brokers) == 0 {
		return errors.New("se requiere al menos un broker Kafka")
	}
	if c.Reintentos < 0 {
		return fmt.Errorf("reintentos inválidos: %d", c.Reintentos)
	}
	return nil
}

// TopicoKafka traduce un tópico con barras (/a/b) a un nombre de tópico Kafka (a.b)
func TopicoKafka(topico string) string {
	return strings.ReplaceAll(strings.Trim(topico, "/"), "/", ".")
}

// ProductorKafka publica marcos comprimidos en Kafka.
// Implementa middleware.Difusor; la lectura queda a cargo de consumidores Kafka.
type ProductorKafka struct {
	productor sarama.SyncProducer
	pipeline  *pipeline.Pipeline
	logger    *zap.Logger
}

var _ middleware.Difusor = (*ProductorKafka)(nil)

// Conectar crea un productor síncrono que espera la confirmación de todas las réplicas
func Conectar(cfg Configuracion, p *pipeline.Pipeline, logger *zap.Logger) (*ProductorKafka, error) {
	cfg.AplicarDefaults()
	if err := cfg.Validar(); err != nil {
		return nil, err
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = cfg.Reintentos

	productor, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("error al conectar con Kafka %v: %w", cfg.Brokers, err)
	}

	logger = logger.With(zap.Strings("brokers", cfg.Brokers))
	logger.Info("productor Kafka conectado")
	return NuevoProductor(productor, p, logger), nil
}

// NuevoProductor envuelve un productor existente
func NuevoProductor(productor sarama.SyncProducer, p *pipeline.Pipeline, logger *zap.Logger) *ProductorKafka {
	return &ProductorKafka{productor: productor, pipeline: p, logger: logger}
}

// Desconectar cierra el productor
func (k *ProductorKafka) Desconectar() {
	if err := k.productor.Close(); err != nil {
		k.logger.Warn("error al cerrar productor Kafka", zap.Error(err))
		return
	}
	k.logger.Info("productor Kafka desconectado")
}

// Publicar comprime el marco y lo publica
func (k *ProductorKafka) Publicar(topico string, marco tipos.Marco) error {
	datos, err := middleware.Empaquetar(k.pipeline, topico, marco)
	if err != nil {
		return err
	}
	return k.enviar(topico, datos)
}

// PublicarComprimido publica un blob ya comprimido
func (k *ProductorKafka) PublicarComprimido(topico string, blob []byte) error {
	datos, err := middleware.EmpaquetarComprimido(topico, blob)
	if err != nil {
		return err
	}
	return k.enviar(topico, datos)
}

func (k *ProductorKafka) enviar(topico string, datos []byte) error {
	mensaje := &sarama.ProducerMessage{
		Topic: TopicoKafka(topico),
		Value: sarama.ByteEncoder(datos),
	}

	particion, desplazamiento, err := k.productor.SendMessage(mensaje)
	if err != nil {
		return fmt.Errorf("error al publicar en %s: %w", topico, err)
	}
	k.logger.Debug("marco publicado en Kafka",
		zap.String("topico", mensaje.Topic),
		zap.Int32("particion", particion),
		zap.Int64("desplazamiento", desplazamiento),
	)
	return nil
}
