package compresor

// CompresorNinguno no comprime: copia los datos tal cual.
// Útil para depurar el formato serializado o para marcos ya muy pequeños.
type CompresorNinguno struct{}

// Comprimir retorna una copia de los datos
func (c *CompresorNinguno) Comprimir(datos []byte) ([]byte, error) {
	return append([]byte{}, datos...), nil
}

// Descomprimir retorna una copia de los datos
func (c *CompresorNinguno) Descomprimir(datos []byte) ([]byte, error) {
	return append([]byte{}, datos...), nil
}
