package tipos

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ConfiguracionS3 del archivo de marcos comprimidos en un almacenamiento
// compatible con S3 (AWS S3, Garage, MinIO, R2).
//
// Sin Endpoint se usa el endpoint de AWS de la región. Con Endpoint las
// rutas son de estilo path, salvo que EstiloVirtual sea true.
type ConfiguracionS3 struct {
	Endpoint        string `yaml:"endpoint"`          // ej: http://localhost:3900; vacío = AWS
	AccessKeyID     string `yaml:"access_key_id"`     // vacío = cadena de credenciales por defecto
	SecretAccessKey string `yaml:"secret_access_key"` // requerido junto con AccessKeyID
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`         // vacío = us-east-1
	Prefijo         string `yaml:"prefijo"`        // ej: nombre del nodo
	EstiloVirtual   bool   `yaml:"estilo_virtual"` // bucket como subdominio del endpoint
}

// Validar verifica los campos requeridos y reporta todos los faltantes
func (cfg ConfiguracionS3) Validar() error {
	var errs []error
	if cfg.Bucket == "" {
		errs = append(errs, errors.New("bucket es requerido"))
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		errs = append(errs, errors.New("access_key_id y secret_access_key van juntos"))
	}
	if cfg.Endpoint != "" && !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		errs = append(errs, fmt.Errorf("endpoint debe ser una URL http(s): %q", cfg.Endpoint))
	}
	return errors.Join(errs...)
}

// AplicarDefaults completa la región
func (cfg *ConfiguracionS3) AplicarDefaults() {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
}

// ClienteS3 son las operaciones S3 que usa el archivo de marcos; *s3.Client la implementa
type ClienteS3 interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// CrearClienteS3 crea el cliente del SDK a partir de la configuración
func CrearClienteS3(ctx context.Context, cfg ConfiguracionS3) (*s3.Client, error) {
	cfg.AplicarDefaults()
	if err := cfg.Validar(); err != nil {
		return nil, fmt.Errorf("configuración S3 inválida: %w", err)
	}

	opciones := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opciones = append(opciones, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opciones...)
	if err != nil {
		return nil, fmt.Errorf("error al cargar configuración de AWS: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = !cfg.EstiloVirtual
		}
	}), nil
}

// GenerarClaveS3Marco arma la clave del objeto: {prefijo}/{clave}, o {clave} sin prefijo
func GenerarClaveS3Marco(prefijo, clave string) string {
	prefijo = strings.Trim(prefijo, "/")
	if prefijo == "" {
		return clave
	}
	return prefijo + "/" + clave
}

// ParsearClaveS3Marco separa una clave de objeto en prefijo y clave de contenido
func ParsearClaveS3Marco(claveS3 string) (prefijo, clave string, err error) {
	directorio, clave := path.Split(claveS3)
	if clave == "" {
		return "", "", fmt.Errorf("clave S3 sin nombre de objeto: %q", claveS3)
	}
	return strings.TrimSuffix(directorio, "/"), clave, nil
}
