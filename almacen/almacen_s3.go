package almacen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cbiale/asciiwave/tipos"
)

// AlmacenS3 archiva los blobs en un bucket S3-compatible.
// Cada blob se guarda en {prefijo}/{clave}.
type AlmacenS3 struct {
	cliente tipos.ClienteS3
	bucket  string
	prefijo string
}

// NuevoAlmacenS3 crea el almacén sobre un cliente ya configurado
func NuevoAlmacenS3(cliente tipos.ClienteS3, cfg tipos.ConfiguracionS3) *AlmacenS3 {
	return &AlmacenS3{
		cliente: cliente,
		bucket:  cfg.Bucket,
		prefijo: cfg.Prefijo,
	}
}

// AsegurarBucket crea el bucket si todavía no existe
func (a *AlmacenS3) AsegurarBucket(ctx context.Context) error {
	_, err := a.cliente.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var noEncontrado *types.NotFound
	if !errors.As(err, &noEncontrado) {
		return fmt.Errorf("error al verificar bucket %s: %w", a.bucket, err)
	}

	if _, err := a.cliente.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("error al crear bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Guardar sube el blob bajo su clave de contenido
func (a *AlmacenS3) Guardar(ctx context.Context, datos []byte) (string, error) {
	clave := ClaveContenido(datos)

	_, err := a.cliente.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(tipos.GenerarClaveS3Marco(a.prefijo, clave)),
		Body:          bytes.NewReader(datos),
		ContentLength: aws.Int64(int64(len(datos))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("error al subir marco %s: %w", clave, err)
	}
	return clave, nil
}

// Obtener descarga el blob de una clave
func (a *AlmacenS3) Obtener(ctx context.Context, clave string) ([]byte, error) {
	if err := ValidarClave(clave); err != nil {
		return nil, err
	}

	salida, err := a.cliente.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(tipos.GenerarClaveS3Marco(a.prefijo, clave)),
	})
	if err != nil {
		var noExiste *types.NoSuchKey
		if errors.As(err, &noExiste) {
			return nil, ErrNoEncontrado
		}
		return nil, fmt.Errorf("error al descargar marco %s: %w", clave, err)
	}
	defer salida.Body.Close()

	datos, err := io.ReadAll(salida.Body)
	if err != nil {
		return nil, fmt.Errorf("error al leer marco %s: %w", clave, err)
	}

	if err := verificarContenido(clave, datos); err != nil {
		return nil, err
	}
	return datos, nil
}

// Eliminar borra el objeto de una clave
func (a *AlmacenS3) Eliminar(ctx context.Context, clave string) error {
	if err := ValidarClave(clave); err != nil {
		return err
	}

	_, err := a.cliente.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(tipos.GenerarClaveS3Marco(a.prefijo, clave)),
	})
	if err != nil {
		return fmt.Errorf("error al eliminar marco %s: %w", clave, err)
	}
	return nil
}

// Listar retorna las claves archivadas bajo el prefijo
func (a *AlmacenS3) Listar(ctx context.Context) ([]string, error) {
	var prefijo *string
	if p := tipos.GenerarClaveS3Marco(a.prefijo, ""); p != "" {
		prefijo = aws.String(p)
	}

	var claves []string
	var token *string
	for {
		salida, err := a.cliente.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.bucket),
			Prefix:            prefijo,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("error al listar marcos: %w", err)
		}

		for _, objeto := range salida.Contents {
			_, clave, err := tipos.ParsearClaveS3Marco(aws.ToString(objeto.Key))
			if err != nil || ValidarClave(clave) != nil {
				continue
			}
			claves = append(claves, clave)
		}

		if !aws.ToBool(salida.IsTruncated) || salida.NextContinuationToken == nil {
			break
		}
		token = salida.NextContinuationToken
	}
	return claves, nil
}
