// asciiwave expone la compresión de marcos ASCII por HTTP y CoAP.
//
// Cada marco comprimido se guarda (Redis, Pebble local, S3) y se difunde por
// los brokers configurados (MQTT, NATS, Kafka) y a los observadores CoAP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/almacen"
	"github.com/cbiale/asciiwave/configuracion"
	"github.com/cbiale/asciiwave/middleware"
	"github.com/cbiale/asciiwave/middleware/cliente_kafka"
	"github.com/cbiale/asciiwave/middleware/cliente_mqtt"
	"github.com/cbiale/asciiwave/middleware/cliente_nats"
	"github.com/cbiale/asciiwave/middleware/servidor"
	"github.com/cbiale/asciiwave/pipeline"
	"github.com/cbiale/asciiwave/registro"
	"github.com/cbiale/asciiwave/tipos"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var rutaConfig, direccionHTTP, direccionCoAP string

	flagSet := pflag.NewFlagSet("asciiwave", pflag.ContinueOnError)
	flagSet.StringVar(&rutaConfig, "config", "", "archivo YAML de configuración (por defecto $"+configuracion.VariableEntorno+")")
	flagSet.StringVar(&direccionHTTP, "http", "", "dirección del servidor HTTP, reemplaza http.direccion")
	flagSet.StringVar(&direccionCoAP, "coap", "", "dirección del servidor CoAP, reemplaza coap.direccion")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	config, err := configuracion.Cargar(rutaConfig)
	if err != nil {
		return err
	}
	if direccionHTTP != "" {
		config.HTTP.Direccion = direccionHTTP
	}
	if direccionCoAP != "" {
		config.CoAP.Direccion = direccionCoAP
	}

	if err := registro.Inicializar(config.Registro); err != nil {
		return err
	}
	logger := registro.Logger()
	defer logger.Sync()

	p, err := pipeline.NuevoPipeline(config.Pipeline)
	if err != nil {
		return err
	}

	almacenMarcos, cerrar, err := abrirAlmacen(context.Background(), config.Almacen)
	if err != nil {
		return err
	}
	defer cerrar()

	difusores, desconectar, err := conectarDifusores(config, p, logger)
	if err != nil {
		return err
	}
	defer desconectar()

	s, err := servidor.NuevoServidor(servidor.Opciones{
		Pipeline:     p,
		Almacen:      almacenMarcos,
		Difusores:    difusores,
		MaximoCuerpo: config.HTTP.MaximoCuerpo,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	errores := make(chan error, 2)
	if config.HTTP.Direccion != "" {
		go func() { errores <- s.IniciarHTTP(config.HTTP.Direccion) }()
	}
	if config.CoAP.Direccion != "" {
		go func() { errores <- s.IniciarCoAP(config.CoAP.Direccion) }()
	}
	return <-errores
}

// abrirAlmacen arma el almacén según la configuración; puede no haber ninguno.
// Con Pebble y S3 se escalonan; Redis, si está, actúa como caché delante.
func abrirAlmacen(ctx context.Context, config configuracion.ConfiguracionAlmacen) (almacen.Almacen, func(), error) {
	var cerradores []func() error
	cerrar := func() {
		for _, c := range cerradores {
			_ = c()
		}
	}

	var local *almacen.AlmacenPebble
	if config.Directorio != "" {
		var err error
		local, err = almacen.AbrirPebble(config.Directorio, nil)
		if err != nil {
			return nil, nil, err
		}
		cerradores = append(cerradores, local.Cerrar)
	}

	var archivo *almacen.AlmacenS3
	if config.S3 != nil {
		cliente, err := tipos.CrearClienteS3(ctx, *config.S3)
		if err != nil {
			cerrar()
			return nil, nil, err
		}
		archivo = almacen.NuevoAlmacenS3(cliente, *config.S3)
		if err := archivo.AsegurarBucket(ctx); err != nil {
			cerrar()
			return nil, nil, err
		}
	}

	var persistente almacen.Almacen
	switch {
	case local != nil && archivo != nil:
		persistente = almacen.NuevoAlmacenEscalonado(local, archivo)
	case local != nil:
		persistente = local
	case archivo != nil:
		persistente = archivo
	}

	if config.Redis == nil {
		return persistente, cerrar, nil
	}

	clienteRedis := almacen.NuevoClienteRedis(*config.Redis)
	if err := clienteRedis.Ping(ctx).Err(); err != nil {
		cerrar()
		_ = clienteRedis.Close()
		return nil, nil, fmt.Errorf("error al conectar con Redis %s: %w", config.Redis.Direccion, err)
	}
	cerradores = append(cerradores, clienteRedis.Close)

	cache := almacen.NuevoAlmacenRedis(clienteRedis, *config.Redis)
	if persistente == nil {
		return cache, cerrar, nil
	}
	return almacen.NuevoAlmacenEscalonado(cache, persistente), cerrar, nil
}

// difusorTopico publica siempre en el tópico configurado para su broker
type difusorTopico struct {
	difusor middleware.Difusor
	topico  string
}

func (d difusorTopico) PublicarComprimido(_ string, datos []byte) error {
	return d.difusor.PublicarComprimido(d.topico, datos)
}

// conectarDifusores conecta los brokers configurados
func conectarDifusores(config *configuracion.Configuracion, p *pipeline.Pipeline, logger *zap.Logger) ([]middleware.Difusor, func(), error) {
	var desconexiones []func()
	var difusores []middleware.Difusor
	desconectar := func() {
		for _, d := range desconexiones {
			d()
		}
	}

	if config.MQTT != nil {
		c, err := cliente_mqtt.Conectar(*config.MQTT, p, logger)
		if err != nil {
			return nil, nil, err
		}
		desconexiones = append(desconexiones, c.Desconectar)
		difusores = append(difusores, difusorTopico{c, config.MQTT.Topico})
	}

	if config.NATS != nil {
		c, err := cliente_nats.Conectar(*config.NATS, p, logger)
		if err != nil {
			desconectar()
			return nil, nil, err
		}
		desconexiones = append(desconexiones, c.Desconectar)
		difusores = append(difusores, difusorTopico{c, config.NATS.Topico})
	}

	if config.Kafka != nil {
		k, err := cliente_kafka.Conectar(*config.Kafka, p, logger)
		if err != nil {
			desconectar()
			return nil, nil, err
		}
		desconexiones = append(desconexiones, k.Desconectar)
		difusores = append(difusores, difusorTopico{k, config.Kafka.Topico})
	}

	return difusores, desconectar, nil
}
