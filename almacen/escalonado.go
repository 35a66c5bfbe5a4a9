package almacen

import (
	"context"
	"errors"
	"fmt"
)

// AlmacenEscalonado combina un almacén local rápido con un archivo remoto.
// Guardar escribe en ambos; Obtener lee del local y, si falta, del archivo,
// dejando una copia local.
type AlmacenEscalonado struct {
	local   Almacen
	archivo Almacen
}

var _ Almacen = (*AlmacenEscalonado)(nil)

// NuevoAlmacenEscalonado crea el almacén combinado
func NuevoAlmacenEscalonado(local, archivo Almacen) *AlmacenEscalonado {
	return &AlmacenEscalonado{local: local, archivo: archivo}
}

// Guardar escribe primero en el local y luego en el archivo
func (a *AlmacenEscalonado) Guardar(ctx context.Context, datos []byte) (string, error) {
	clave, err := a.local.Guardar(ctx, datos)
	if err != nil {
		return "", err
	}
	if _, err := a.archivo.Guardar(ctx, datos); err != nil {
		return "", fmt.Errorf("archivo: %w", err)
	}
	return clave, nil
}

// Obtener busca en el local y después en el archivo
func (a *AlmacenEscalonado) Obtener(ctx context.Context, clave string) ([]byte, error) {
	datos, err := a.local.Obtener(ctx, clave)
	if err == nil || !errors.Is(err, ErrNoEncontrado) {
		return datos, err
	}

	datos, err = a.archivo.Obtener(ctx, clave)
	if err != nil {
		return nil, err
	}
	if _, err := a.local.Guardar(ctx, datos); err != nil {
		return nil, fmt.Errorf("copia local: %w", err)
	}
	return datos, nil
}

// Eliminar borra de ambos niveles
func (a *AlmacenEscalonado) Eliminar(ctx context.Context, clave string) error {
	return errors.Join(a.local.Eliminar(ctx, clave), a.archivo.Eliminar(ctx, clave))
}
