package hasher

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// BufferSize es el tamaño del bloque de lectura (512 KiB): amortiza el
// coste de cada read en archivos grandes.
const BufferSize = 512 * 1024

// DigestWidth es el ancho en caracteres del hash codificado.
const DigestWidth = 16

// bufferPool evita reservar 512 KiB por archivo
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, BufferSize)
		return &b
	},
}

// hashPool para reutilizar el estado del digest
var hashPool = sync.Pool{
	New: func() any {
		return xxhash.New()
	},
}

// ErrVanished indica que el archivo desapareció entre la enumeración y el
// hash.
var ErrVanished = errors.New("file vanished")

// Hasher calcula el hash de contenido de archivos de un afero.Fs.
type Hasher struct {
	fs afero.Fs
}

// New crea un hasher sobre fs.
func New(fs afero.Fs) *Hasher {
	return &Hasher{fs: fs}
}

// HashFile lee el archivo completo y devuelve su xxhash64 en hexadecimal
// de ancho fijo. El descriptor se cierra en todos los caminos de salida.
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := h.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrVanished, path)
		}
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	// Pooling
	d := hashPool.Get().(*xxhash.Digest)
	d.Reset()
	defer hashPool.Put(d)

	bufPtr := bufferPool.Get().(*[]byte)
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	for {
		n, err := file.Read(buf)
		if n > 0 {
			_, _ = d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read from file %s: %w", path, err)
		}
	}

	return Encode(d.Sum64()), nil
}

// Encode formatea un digest de 64 bits con ancho fijo.
func Encode(sum uint64) string {
	return fmt.Sprintf("%0*x", DigestWidth, sum)
}

// HashBytes es el equivalente en memoria de HashFile.
func HashBytes(data []byte) string {
	return Encode(xxhash.Sum64(data))
}
