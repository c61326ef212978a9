// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rastertest builds synthetic GeoTIFF layers, zip archives and
// range-capable HTTP servers for tests.
package rastertest

import (
	"archive/zip"
	"bytes"
	"compress/lzw"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// maxLZWBlock keeps an LZW block below 256 codes, where the 9-bit code
// width of compress/lzw and of TIFF's early-change variant agree.
const maxLZWBlock = 240

// SampleType selects how values are stored.
type SampleType int

const (
	Float32 SampleType = iota
	Float64
	Int16
	Uint8
)

// Compression selects the block codec.
type Compression int

const (
	None Compression = iota
	Deflate
	LZW
)

// Layer describes a synthetic GeoTIFF.
type Layer struct {
	Width, Height int

	// Values holds Width*Height samples in row-major order.
	Values []float64

	// OriginX, OriginY is the top-left corner; PixelSize the cell size.
	OriginX, OriginY float64
	PixelSize        float64

	// NoData is written as the GDAL_NODATA tag when set.
	NoData *float64

	Type        SampleType
	Compression Compression

	// Predictor is 1 (none), 2 (horizontal, integers) or 3 (floating point).
	Predictor int

	// TileSize > 0 writes square tiles; otherwise strips of RowsPerStrip.
	TileSize     int
	RowsPerStrip int

	BigEndian bool
	BigTIFF   bool

	// PixelIsPoint tags the raster as sampled at pixel centres.
	PixelIsPoint bool

	// NoGeoreference omits every georeferencing tag.
	NoGeoreference bool
}

// Grid returns a Width×Height layer of 1-degree pixels whose top-left
// corner is (originX, originY), filled by f(row, col).
func Grid(width, height int, originX, originY float64, f func(row, col int) float64) Layer {
	values := make([]float64, width*height)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			values[r*width+c] = f(r, c)
		}
	}
	return Layer{
		Width: width, Height: height, Values: values,
		OriginX: originX, OriginY: originY, PixelSize: 1,
	}
}

// Noise returns a Width×Height layer of pseudo-random values that deflate
// cannot shrink, stored in strips of 16 rows.
func Noise(width, height int, seed uint64) Layer {
	rng := rand.New(rand.NewPCG(seed, seed))
	l := Grid(width, height, 0, float64(height), func(int, int) float64 { return rng.Float64() * 1000 })
	l.RowsPerStrip = 16
	return l
}

// NoData returns a pointer for Layer.NoData.
func NoData(v float64) *float64 { return &v }

func (l Layer) bytesPerSample() int {
	switch l.Type {
	case Float64:
		return 8
	case Int16:
		return 2
	case Uint8:
		return 1
	default:
		return 4
	}
}

func (l Layer) sampleFormat() uint64 {
	switch l.Type {
	case Float32, Float64:
		return 3
	case Int16:
		return 2
	default:
		return 1
	}
}

// Encode returns the GeoTIFF bytes for l.
func (l Layer) Encode() ([]byte, error) {
	if len(l.Values) != l.Width*l.Height {
		return nil, fmt.Errorf("have %d values for %dx%d", len(l.Values), l.Width, l.Height)
	}
	var bo binary.ByteOrder = binary.LittleEndian
	if l.BigEndian {
		bo = binary.BigEndian
	}

	blockW, blockH := l.Width, l.RowsPerStrip
	if l.TileSize > 0 {
		blockW, blockH = l.TileSize, l.TileSize
	} else if blockH <= 0 || blockH > l.Height {
		blockH = l.Height
	}
	across := (l.Width + blockW - 1) / blockW
	down := (l.Height + blockH - 1) / blockH

	w := &writer{bo: bo, big: l.BigTIFF}
	w.header()

	var offsets, counts []uint64
	for by := 0; by < down; by++ {
		for bx := 0; bx < across; bx++ {
			rows := blockH
			if l.TileSize == 0 && by*blockH+rows > l.Height {
				rows = l.Height - by*blockH
			}
			raw := l.block(bo, bx*blockW, by*blockH, blockW, rows)
			data, err := l.compress(raw)
			if err != nil {
				return nil, err
			}
			offsets = append(offsets, uint64(w.buf.Len()))
			counts = append(counts, uint64(len(data)))
			w.buf.Write(data)
		}
	}

	compression := uint64(1)
	switch l.Compression {
	case Deflate:
		compression = 8
	case LZW:
		compression = 5
	}
	predictor := l.Predictor
	if predictor == 0 {
		predictor = 1
	}

	offType := uint16(4)
	if l.BigTIFF {
		offType = 16
	}

	fields := []field{
		w.longs(256, uint64(l.Width)),
		w.longs(257, uint64(l.Height)),
		w.shorts(258, uint64(l.bytesPerSample()*8)),
		w.shorts(259, compression),
		w.shorts(262, 1),
		w.shorts(277, 1),
		w.shorts(284, 1),
		w.shorts(317, uint64(predictor)),
		w.shorts(339, l.sampleFormat()),
	}
	if l.TileSize > 0 {
		fields = append(fields,
			w.longs(322, uint64(blockW)),
			w.longs(323, uint64(blockH)),
			w.ints(324, offType, offsets...),
			w.ints(325, offType, counts...),
		)
	} else {
		fields = append(fields,
			w.ints(273, offType, offsets...),
			w.longs(278, uint64(blockH)),
			w.ints(279, offType, counts...),
		)
	}
	if !l.NoGeoreference {
		fields = append(fields,
			w.doubles(33550, l.PixelSize, l.PixelSize, 0),
			w.doubles(33922, 0, 0, 0, l.OriginX, l.OriginY, 0),
		)
		rasterType := uint64(1)
		if l.PixelIsPoint {
			rasterType = 2
		}
		fields = append(fields, w.shorts(34735,
			1, 1, 0, 2,
			1024, 0, 1, 2,
			1025, 0, 1, rasterType,
		))
	}
	if l.NoData != nil {
		fields = append(fields, w.ascii(42113, strconv.FormatFloat(*l.NoData, 'g', -1, 64)))
	}

	return w.finish(fields), nil
}

// MustEncode is Encode for tests.
func (l Layer) MustEncode(t testing.TB) []byte {
	t.Helper()
	data, err := l.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// block serialises one block, padding tiles past the edge with zeros.
func (l Layer) block(bo binary.ByteOrder, col0, row0, width, rows int) []byte {
	bps := l.bytesPerSample()
	out := make([]byte, width*rows*bps)
	for r := 0; r < rows; r++ {
		row := out[r*width*bps : (r+1)*width*bps]
		vals := make([]float64, width)
		for c := 0; c < width; c++ {
			if row0+r < l.Height && col0+c < l.Width {
				vals[c] = l.Values[(row0+r)*l.Width+col0+c]
			}
		}
		switch l.Predictor {
		case 2:
			l.putDifferenced(bo, row, vals)
		case 3:
			l.putFloatPredicted(row, vals)
		default:
			for c, v := range vals {
				l.put(bo, row[c*bps:], v)
			}
		}
	}
	return out
}

func (l Layer) put(bo binary.ByteOrder, b []byte, v float64) {
	switch l.Type {
	case Float64:
		bo.PutUint64(b, math.Float64bits(v))
	case Int16:
		bo.PutUint16(b, uint16(int16(v)))
	case Uint8:
		b[0] = uint8(v)
	default:
		bo.PutUint32(b, math.Float32bits(float32(v)))
	}
}

// putDifferenced writes integer samples with horizontal differencing.
func (l Layer) putDifferenced(bo binary.ByteOrder, row []byte, vals []float64) {
	switch l.Type {
	case Int16:
		prev := int16(0)
		for c, v := range vals {
			cur := int16(v)
			bo.PutUint16(row[c*2:], uint16(cur-prev))
			prev = cur
		}
	default:
		prev := uint8(0)
		for c, v := range vals {
			cur := uint8(v)
			row[c] = cur - prev
			prev = cur
		}
	}
}

// putFloatPredicted writes float samples as big-endian byte planes with
// byte differencing.
func (l Layer) putFloatPredicted(row []byte, vals []float64) {
	bps := l.bytesPerSample()
	be := make([]byte, len(row))
	for c, v := range vals {
		l.put(binary.BigEndian, be[c*bps:], v)
	}
	n := len(vals)
	for s := 0; s < n; s++ {
		for b := 0; b < bps; b++ {
			row[b*n+s] = be[s*bps+b]
		}
	}
	for i := len(row) - 1; i >= 1; i-- {
		row[i] -= row[i-1]
	}
}

func (l Layer) compress(raw []byte) ([]byte, error) {
	var (
		buf bytes.Buffer
		cw  io.WriteCloser
	)
	switch l.Compression {
	case Deflate:
		cw = zlib.NewWriter(&buf)
	case LZW:
		if len(raw) > maxLZWBlock {
			return nil, fmt.Errorf("LZW block of %d bytes exceeds %d; use smaller strips", len(raw), maxLZWBlock)
		}
		cw = lzw.NewWriter(&buf, lzw.MSB, 8)
	default:
		return raw, nil
	}
	if _, err := cw.Write(raw); err != nil {
		return nil, err
	}
	if err := cw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// field is an IFD entry before layout.
type field struct {
	tag   uint16
	typ   uint16
	count uint64
	data  []byte
}

type writer struct {
	bo  binary.ByteOrder
	big bool
	buf bytes.Buffer
}

func (w *writer) header() {
	if w.bo == binary.LittleEndian {
		w.buf.WriteString("II")
	} else {
		w.buf.WriteString("MM")
	}
	if w.big {
		w.u16(43)
		w.u16(8)
		w.u16(0)
		w.u64(0)
	} else {
		w.u16(42)
		w.u32(0)
	}
}

func (w *writer) u16(v uint16) { b := make([]byte, 2); w.bo.PutUint16(b, v); w.buf.Write(b) }
func (w *writer) u32(v uint32) { b := make([]byte, 4); w.bo.PutUint32(b, v); w.buf.Write(b) }
func (w *writer) u64(v uint64) { b := make([]byte, 8); w.bo.PutUint64(b, v); w.buf.Write(b) }

func (w *writer) shorts(tag uint16, vals ...uint64) field {
	return w.ints(tag, 3, vals...)
}

func (w *writer) longs(tag uint16, vals ...uint64) field {
	return w.ints(tag, 4, vals...)
}

func (w *writer) ints(tag, typ uint16, vals ...uint64) field {
	size := map[uint16]int{3: 2, 4: 4, 16: 8}[typ]
	data := make([]byte, size*len(vals))
	for i, v := range vals {
		switch size {
		case 2:
			w.bo.PutUint16(data[i*2:], uint16(v))
		case 4:
			w.bo.PutUint32(data[i*4:], uint32(v))
		default:
			w.bo.PutUint64(data[i*8:], v)
		}
	}
	return field{tag: tag, typ: typ, count: uint64(len(vals)), data: data}
}

func (w *writer) doubles(tag uint16, vals ...float64) field {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		w.bo.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return field{tag: tag, typ: 12, count: uint64(len(vals)), data: data}
}

func (w *writer) ascii(tag uint16, s string) field {
	data := append([]byte(s), 0)
	return field{tag: tag, typ: 2, count: uint64(len(data)), data: data}
}

// finish appends the IFD and out-of-line values and patches the header.
func (w *writer) finish(fields []field) []byte {
	sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })

	if w.buf.Len()%2 == 1 {
		w.buf.WriteByte(0)
	}
	ifdOff := uint64(w.buf.Len())

	countSize, entrySize, inline, nextSize := 2, 12, 4, 4
	if w.big {
		countSize, entrySize, inline, nextSize = 8, 20, 8, 8
	}
	extraOff := ifdOff + uint64(countSize+entrySize*len(fields)+nextSize)

	var entries, extra bytes.Buffer
	for _, f := range fields {
		e := make([]byte, entrySize)
		w.bo.PutUint16(e[0:], f.tag)
		w.bo.PutUint16(e[2:], f.typ)
		var value []byte
		if w.big {
			w.bo.PutUint64(e[4:], f.count)
			value = e[12:20]
		} else {
			w.bo.PutUint32(e[4:], uint32(f.count))
			value = e[8:12]
		}
		if len(f.data) <= inline {
			copy(value, f.data)
		} else {
			off := extraOff + uint64(extra.Len())
			if w.big {
				w.bo.PutUint64(value, off)
			} else {
				w.bo.PutUint32(value, uint32(off))
			}
			extra.Write(f.data)
			if extra.Len()%2 == 1 {
				extra.WriteByte(0)
			}
		}
		entries.Write(e)
	}

	if w.big {
		w.u64(uint64(len(fields)))
	} else {
		w.u16(uint16(len(fields)))
	}
	w.buf.Write(entries.Bytes())
	if w.big {
		w.u64(0)
	} else {
		w.u32(0)
	}
	w.buf.Write(extra.Bytes())

	out := w.buf.Bytes()
	if w.big {
		w.bo.PutUint64(out[8:], ifdOff)
	} else {
		w.bo.PutUint32(out[4:], uint32(ifdOff))
	}
	return out
}

// Zip packs members into a zip archive using method (zip.Store or
// zip.Deflate). Members are written in name order.
func Zip(t testing.TB, members map[string][]byte, method uint16) []byte {
	t.Helper()
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	for _, name := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(members[name]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Server serves fixed files with HTTP range support and records requests.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	requests []string
	headers  []http.Header
	served   map[string]int64
	require  http.Header
}

// NewServer starts a server for files keyed by URL path ("/a/b.zip").
func NewServer(t testing.TB, files map[string][]byte) *Server {
	t.Helper()
	s := &Server{files: files, served: map[string]int64{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.headers = append(s.headers, r.Header.Clone())
	data, ok := s.files[r.URL.Path]
	require := s.require
	s.mu.Unlock()
	for k := range require {
		if r.Header.Get(k) != require.Get(k) {
			http.Error(w, "missing "+k, http.StatusUnauthorized)
			return
		}
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	cw := &countingWriter{ResponseWriter: w}
	http.ServeContent(cw, r, r.URL.Path, time.Time{}, bytes.NewReader(data))
	s.mu.Lock()
	s.served[r.URL.Path] += cw.n
	s.mu.Unlock()
}

type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.n += int64(n)
	return n, err
}

// Requests returns "METHOD /path" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// RequireHeader answers 401 to requests that lack header key with value.
func (s *Server) RequireHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.require == nil {
		s.require = http.Header{}
	}
	s.require.Set(key, value)
}

// Headers returns the request headers received so far, in order.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// Served returns the bytes sent in response bodies for path so far.
func (s *Server) Served(path string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served[path]
}

// Count returns how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == method+" "+path {
			n++
		}
	}
	return n
}
