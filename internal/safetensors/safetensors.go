// Package safetensors reads and writes the safetensors weight container:
// an 8-byte little-endian header length, a JSON header mapping tensor names to
// dtype/shape/data_offsets, then the raw tensor bytes.
package safetensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

// maxHeaderLen bounds the JSON header so a corrupt length cannot force a huge allocation.
const maxHeaderLen = 100 << 20

var (
	ErrCorruptFile     = errors.New("safetensors: corrupt file")
	ErrTensorNotFound  = errors.New("safetensors: tensor not found")
	ErrUnsupportedType = errors.New("safetensors: unsupported dtype")
)

type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is an open safetensors container. Data is memory mapped when the
// platform allows it; Close releases the mapping.
type File struct {
	Path     string
	Metadata map[string]string
	Tensors  map[string]TensorInfo

	data    []byte
	payload []byte
	mmapped bool
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size < 8 || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %s: size %d", ErrCorruptFile, path, size)
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		return nil, err
	}
	sf, err := parse(path, data)
	if err != nil {
		if mapped {
			_ = unmapFile(data)
		}
		return nil, err
	}
	sf.mmapped = mapped
	return sf, nil
}

// OpenBytes parses a container already held in memory.
func OpenBytes(data []byte) (*File, error) {
	return parse("", data)
}

func parse(path string, data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: missing header length", ErrCorruptFile)
	}
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > maxHeaderLen || headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header length %d exceeds file", ErrCorruptFile, headerLen)
	}
	headerBytes := data[8 : 8+headerLen]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse header: %v", ErrCorruptFile, err)
	}

	sf := &File{
		Path:    path,
		Tensors: make(map[string]TensorInfo, len(raw)),
		data:    data,
		payload: data[8+headerLen:],
	}
	if meta, ok := raw["__metadata__"]; ok {
		if err := json.Unmarshal(meta, &sf.Metadata); err != nil {
			return nil, fmt.Errorf("%w: parse metadata: %v", ErrCorruptFile, err)
		}
		delete(raw, "__metadata__")
	}

	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrCorruptFile, name, err)
		}
		if len(th.DataOffsets) != 2 {
			return nil, fmt.Errorf("%w: tensor %s: invalid data_offsets", ErrCorruptFile, name)
		}
		info := TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
		if info.Start < 0 || info.End < info.Start || info.End > int64(len(sf.payload)) {
			return nil, fmt.Errorf("%w: tensor %s: offsets [%d,%d) outside data", ErrCorruptFile, name, info.Start, info.End)
		}
		sf.Tensors[name] = info
	}
	return sf, nil
}

// Close releases the memory mapping, if any. Tensor bytes returned by
// ReadTensor must not be used afterwards.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unmapFile(f.data)
	}
	f.data, f.payload, f.mmapped = nil, nil, false
	return err
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadTensor returns the raw bytes of a tensor without copying.
func (f *File) ReadTensor(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	if f.payload == nil {
		return nil, TensorInfo{}, fmt.Errorf("safetensors: file closed")
	}
	return f.payload[t.Start:t.End], t, nil
}

// ReadTensorF32 decodes a tensor to float32, converting from F64, F16 or BF16.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	raw, info, err := f.ReadTensor(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	n, err := NumElements(info.Shape)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	size, ok := DTypeSize(info.DType)
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w %s (tensor %s)", ErrUnsupportedType, info.DType, name)
	}
	if len(raw) != n*size {
		return nil, TensorInfo{}, fmt.Errorf("%w: tensor %s: %d bytes for %d %s elements", ErrCorruptFile, name, len(raw), n, info.DType)
	}

	out := make([]float32, n)
	switch info.DType {
	case "F32":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "F64":
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case "F16":
		for i := range out {
			out[i] = fp16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "BF16":
		for i := range out {
			out[i] = bf16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}
	return out, info, nil
}

// DTypeSize reports the element width of the float dtypes this package decodes.
func DTypeSize(dtype string) (int, bool) {
	switch dtype {
	case "F64":
		return 8, true
	case "F32":
		return 4, true
	case "F16", "BF16":
		return 2, true
	default:
		return 0, false
	}
}

// NumElements multiplies out a shape. A scalar (empty shape) has one element.
func NumElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if d > 0 && n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return n, nil
}

// Tensor is an F32 tensor to be written by Write.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Write encodes tensors as F32 in name order.
func Write(w io.Writer, tensors map[string]Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	var offset int64
	for _, name := range names {
		t := tensors[name]
		n, err := NumElements(t.Shape)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		if n != len(t.Data) {
			return fmt.Errorf("tensor %s: shape %v holds %d elements, got %d", name, t.Shape, n, len(t.Data))
		}
		end := offset + int64(n)*4
		header[name] = tensorHeader{DType: "F32", Shape: t.Shape, DataOffsets: []int64{offset, end}}
		offset = end
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	// Pad the header so the data section starts 8-byte aligned.
	for (8+len(headerBytes))%8 != 0 {
		headerBytes = append(headerBytes, ' ')
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(headerBytes); err != nil {
		return err
	}
	buf := make([]byte, 0, 4096)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
			if len(buf) >= 4096 {
				if _, err := w.Write(buf); err != nil {
					return err
				}
				buf = buf[:0]
			}
		}
	}
	if len(buf) > 0 {
		_, err = w.Write(buf)
	}
	return err
}

// WriteFile writes tensors to path, replacing any existing file.
func WriteFile(path string, tensors map[string]Tensor, metadata map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, tensors, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}
