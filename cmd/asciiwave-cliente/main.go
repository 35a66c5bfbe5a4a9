// asciiwave-cliente publica marcos de texto en un broker o escucha los
// marcos que difunde el servidor y los imprime.
//
//	asciiwave-cliente --mqtt tcp://localhost:1883 --archivo logo.txt --repetir 5
//	asciiwave-cliente --nats nats://localhost:4222 --escuchar
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cbiale/asciiwave/middleware"
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
	var (
		broker, urlNATS, topico, archivo string
		compresion, formato, nivel       string
		escuchar, sinColor               bool
		repetir                          int
		intervalo                        time.Duration
	)

	flagSet := pflag.NewFlagSet("asciiwave-cliente", pflag.ContinueOnError)
	flagSet.StringVar(&broker, "mqtt", "", "broker MQTT (ej: tcp://localhost:1883)")
	flagSet.StringVar(&urlNATS, "nats", "", "servidor NATS (ej: nats://localhost:4222)")
	flagSet.StringVar(&topico, "topico", servidor.TopicoPorDefecto, "tópico de publicación o escucha")
	flagSet.StringVar(&archivo, "archivo", "", "archivo de texto a publicar como marco")
	flagSet.BoolVar(&escuchar, "escuchar", false, "imprime los marcos recibidos en el tópico")
	flagSet.BoolVar(&sinColor, "sin-color", false, "imprime solo los caracteres")
	flagSet.IntVar(&repetir, "repetir", 1, "cantidad de publicaciones")
	flagSet.DurationVar(&intervalo, "intervalo", time.Second, "pausa entre publicaciones")
	flagSet.StringVar(&compresion, "compresion", string(tipos.Gzip), "compresión de bloque")
	flagSet.StringVar(&formato, "formato", string(tipos.FormatoCBOR), "formato de serialización")
	flagSet.StringVar(&nivel, "nivel", "warn", "nivel de registro")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if (broker == "") == (urlNATS == "") {
		return errors.New("indicar exactamente uno de --mqtt o --nats")
	}
	if escuchar == (archivo != "") {
		return errors.New("indicar --archivo o --escuchar")
	}

	logger, err := registro.NuevoLogger(registro.Configuracion{Nivel: nivel, Formato: registro.FormatoConsola})
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := pipeline.NuevoPipeline(pipeline.Configuracion{
		CompresionBloque: tipos.TipoCompresionBloque(compresion),
		Formato:          tipos.FormatoSerializacion(formato),
		MaximoCeldas:     pipeline.MaximoCeldasPorDefecto,
	})
	if err != nil {
		return err
	}

	cliente, err := conectar(broker, urlNATS, p, logger)
	if err != nil {
		return err
	}
	defer cliente.Desconectar()

	if escuchar {
		return escucharMarcos(cliente, topico, !sinColor)
	}
	return publicarArchivo(cliente, topico, archivo, repetir, intervalo)
}

func conectar(broker, urlNATS string, p *pipeline.Pipeline, logger *zap.Logger) (middleware.Cliente, error) {
	if broker != "" {
		return cliente_mqtt.Conectar(cliente_mqtt.Configuracion{Broker: broker, QoS: 1}, p, logger)
	}
	return cliente_nats.Conectar(cliente_nats.Configuracion{URL: urlNATS}, p, logger)
}

func publicarArchivo(cliente middleware.Cliente, topico, archivo string, repetir int, intervalo time.Duration) error {
	contenido, err := os.ReadFile(archivo)
	if err != nil {
		return err
	}
	marco := tipos.MarcoDesdeTexto(string(contenido))

	for i := 0; i < repetir; i++ {
		if i > 0 {
			time.Sleep(intervalo)
		}
		fmt.Printf("Publicando marco %dx%d en %s\n", marco.Ancho(), marco.Alto(), topico)
		if err := cliente.Publicar(topico, marco); err != nil {
			return err
		}
	}
	return nil
}

func escucharMarcos(cliente middleware.Cliente, topico string, conColor bool) error {
	err := cliente.Suscribir(topico, func(topico string, marco tipos.Marco) {
		fmt.Printf("--- %s (%dx%d)\n%s\n", topico, marco.Ancho(), marco.Alto(), renderizar(marco, conColor))
	})
	if err != nil {
		return err
	}
	fmt.Printf("Escuchando %s (Ctrl+C para terminar)\n", topico)

	senales := make(chan os.Signal, 1)
	signal.Notify(senales, os.Interrupt, syscall.SIGTERM)
	<-senales
	return cliente.Desuscribir(topico)
}
