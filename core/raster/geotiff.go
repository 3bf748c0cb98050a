package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// GeoTIFF reading/writing. Integer-sample imagery (band DNs, scene
// classification layers) is decoded through x/image/tiff which knows
// the compression schemes in the wild. Float rasters (DEM, reflectance,
// shadow images) are outside that codec's sample support, so those
// strips are read and written here directly. Georeferencing comes from
// the ModelPixelScale/ModelTiepoint tags in both cases.

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGeoAsciiParams  = 34737
	tagGDALNoData      = 42113
)

const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

const intNoData = -9999

type ifdEntry struct {
	fieldType uint16
	count     uint32
	raw       []byte // value bytes, already dereferenced if stored out of line
}

type ifd struct {
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

var fieldTypeSize = map[uint16]uint32{
	1: 1, // BYTE
	2: 1, // ASCII
	3: 2, // SHORT
	4: 4, // LONG
	5: 8, // RATIONAL
	6: 1, 7: 1, 8: 2, 9: 4, 10: 8,
	11: 4, // FLOAT
	12: 8, // DOUBLE
}

func parseIFD(data []byte) (*ifd, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("file too short for TIFF header")
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file")
	}

	if order.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("bad TIFF magic number")
	}

	offset := order.Uint32(data[4:8])
	if offset+2 > uint32(len(data)) {
		return nil, fmt.Errorf("IFD offset beyond end of file")
	}

	count := uint32(order.Uint16(data[offset : offset+2]))
	entriesEnd := offset + 2 + count*12
	if entriesEnd > uint32(len(data)) {
		return nil, fmt.Errorf("IFD truncated")
	}

	result := &ifd{order: order, entries: map[uint16]ifdEntry{}}
	for i := uint32(0); i < count; i++ {
		entry := data[offset+2+i*12 : offset+2+(i+1)*12]
		tag := order.Uint16(entry[0:2])
		fieldType := order.Uint16(entry[2:4])
		valCount := order.Uint32(entry[4:8])

		size, ok := fieldTypeSize[fieldType]
		if !ok {
			continue
		}
		byteLen := size * valCount

		var raw []byte
		if byteLen <= 4 {
			raw = entry[8 : 8+byteLen]
		} else {
			valOffset := order.Uint32(entry[8:12])
			if valOffset+byteLen > uint32(len(data)) {
				return nil, fmt.Errorf("tag %v value beyond end of file", tag)
			}
			raw = data[valOffset : valOffset+byteLen]
		}
		result.entries[tag] = ifdEntry{fieldType: fieldType, count: valCount, raw: raw}
	}

	return result, nil
}

// uintValues - SHORT or LONG tag values widened to uint32
func (d *ifd) uintValues(tag uint16) ([]uint32, bool) {
	entry, ok := d.entries[tag]
	if !ok {
		return nil, false
	}
	result := make([]uint32, entry.count)
	for i := uint32(0); i < entry.count; i++ {
		switch entry.fieldType {
		case 3:
			result[i] = uint32(d.order.Uint16(entry.raw[i*2 : i*2+2]))
		case 4:
			result[i] = d.order.Uint32(entry.raw[i*4 : i*4+4])
		default:
			return nil, false
		}
	}
	return result, true
}

func (d *ifd) uintValue(tag uint16, defaultVal uint32) uint32 {
	vals, ok := d.uintValues(tag)
	if !ok || len(vals) < 1 {
		return defaultVal
	}
	return vals[0]
}

func (d *ifd) doubleValues(tag uint16) ([]float64, bool) {
	entry, ok := d.entries[tag]
	if !ok || entry.fieldType != 12 {
		return nil, false
	}
	result := make([]float64, entry.count)
	for i := uint32(0); i < entry.count; i++ {
		bits := d.order.Uint64(entry.raw[i*8 : i*8+8])
		result[i] = math.Float64frombits(bits)
	}
	return result, true
}

func (d *ifd) asciiValue(tag uint16) (string, bool) {
	entry, ok := d.entries[tag]
	if !ok || entry.fieldType != 2 {
		return "", false
	}
	return strings.TrimRight(string(entry.raw), "\x00"), true
}

// geoTransformFromTags - ModelPixelScale + ModelTiepoint to the GDAL
// affine form. Both tags are required; rasters without georeferencing
// are a data defect for this pipeline.
func geoTransformFromTags(d *ifd) (GeoTransform, error) {
	var t GeoTransform

	scale, ok := d.doubleValues(tagModelPixelScale)
	if !ok || len(scale) < 2 {
		return t, fmt.Errorf("missing ModelPixelScale tag")
	}
	tiepoint, ok := d.doubleValues(tagModelTiepoint)
	if !ok || len(tiepoint) < 6 {
		return t, fmt.Errorf("missing ModelTiepoint tag")
	}

	// Tiepoint maps raster point (i=col, j=row) to map (x, y)
	t[1] = scale[0]
	t[5] = -scale[1]
	t[0] = tiepoint[3] - scale[0]*tiepoint[0]
	t[3] = tiepoint[4] + scale[1]*tiepoint[1]
	return t, nil
}

// DecodeGeoTIFF - reads a single-band GeoTIFF into a Raster. No-data
// values (GDAL_NODATA tag) become NaN.
func DecodeGeoTIFF(data []byte) (*Raster, error) {
	d, err := parseIFD(data)
	if err != nil {
		return nil, err
	}

	transform, err := geoTransformFromTags(d)
	if err != nil {
		return nil, err
	}
	crs, _ := d.asciiValue(tagGeoAsciiParams)
	crs = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(crs), "|"))

	noData := math.NaN()
	haveNoData := false
	if noDataStr, ok := d.asciiValue(tagGDALNoData); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(noDataStr), 64); err == nil {
			noData = v
			haveNoData = true
		}
	}

	cols := int(d.uintValue(tagImageWidth, 0))
	rows := int(d.uintValue(tagImageLength, 0))
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("missing image dimensions")
	}
	if d.uintValue(tagSamplesPerPixel, 1) != 1 {
		return nil, fmt.Errorf("only single-band rasters are supported")
	}

	result := New(rows, cols, transform, crs)

	bits := d.uintValue(tagBitsPerSample, 1)
	format := d.uintValue(tagSampleFormat, sampleFormatUint)
	compression := d.uintValue(tagCompression, 1)

	if compression == 1 && bits == 32 && (format == sampleFormatFloat || format == sampleFormatInt) {
		err = readRawStrips(d, data, result, format)
	} else {
		err = readViaImageTiff(data, result)
	}
	if err != nil {
		return nil, err
	}

	if haveNoData {
		for i, v := range result.Data {
			if v == noData {
				result.Data[i] = math.NaN()
			}
		}
	}

	return result, nil
}

// readRawStrips - 32-bit float or int samples, uncompressed strips
func readRawStrips(d *ifd, data []byte, into *Raster, format uint32) error {
	offsets, ok := d.uintValues(tagStripOffsets)
	if !ok {
		return fmt.Errorf("missing StripOffsets tag")
	}
	counts, ok := d.uintValues(tagStripByteCounts)
	if !ok || len(counts) != len(offsets) {
		return fmt.Errorf("missing or mismatched StripByteCounts tag")
	}

	idx := 0
	for s := range offsets {
		if offsets[s]+counts[s] > uint32(len(data)) {
			return fmt.Errorf("strip %v beyond end of file", s)
		}
		strip := data[offsets[s] : offsets[s]+counts[s]]
		for pos := 0; pos+4 <= len(strip) && idx < len(into.Data); pos += 4 {
			bits := d.order.Uint32(strip[pos : pos+4])
			if format == sampleFormatFloat {
				into.Data[idx] = float64(math.Float32frombits(bits))
			} else {
				into.Data[idx] = float64(int32(bits))
			}
			idx++
		}
	}

	if idx != len(into.Data) {
		return fmt.Errorf("expected %v samples, strips held %v", len(into.Data), idx)
	}
	return nil
}

// readViaImageTiff - integer-sample imagery through the x/image codec
func readViaImageTiff(data []byte, into *Raster) error {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	if bounds.Dx() != into.Cols || bounds.Dy() != into.Rows {
		return fmt.Errorf("decoded image size %vx%v does not match tags %vx%v", bounds.Dx(), bounds.Dy(), into.Cols, into.Rows)
	}

	switch im := img.(type) {
	case *image.Gray:
		for row := 0; row < into.Rows; row++ {
			for col := 0; col < into.Cols; col++ {
				into.Set(row, col, float64(im.GrayAt(bounds.Min.X+col, bounds.Min.Y+row).Y))
			}
		}
	case *image.Gray16:
		for row := 0; row < into.Rows; row++ {
			for col := 0; col < into.Cols; col++ {
				into.Set(row, col, float64(im.Gray16At(bounds.Min.X+col, bounds.Min.Y+row).Y))
			}
		}
	default:
		return fmt.Errorf("unsupported TIFF image type %T", img)
	}
	return nil
}

// EncodeGeoTIFF - writes a Raster as a single-strip little-endian
// GeoTIFF. Continuous rasters are stored as 32-bit float with NaN
// no-data; integer (categorical) rasters as 32-bit int with -9999
// no-data, matching the convention of the published assets.
func EncodeGeoTIFF(r *Raster, integer bool) ([]byte, error) {
	if r.Rows <= 0 || r.Cols <= 0 {
		return nil, fmt.Errorf("cannot encode empty raster")
	}

	order := binary.LittleEndian
	dataSize := r.Rows * r.Cols * 4

	pixelOffset := uint32(8)
	pixels := make([]byte, dataSize)
	for i, v := range r.Data {
		var bits uint32
		if integer {
			sample := int32(intNoData)
			if !math.IsNaN(v) {
				sample = int32(math.Round(v))
			}
			bits = uint32(sample)
		} else {
			bits = math.Float32bits(float32(v))
		}
		order.PutUint32(pixels[i*4:i*4+4], bits)
	}

	// Out-of-line tag values follow the pixel data
	extras := &bytes.Buffer{}
	extrasBase := pixelOffset + uint32(dataSize)
	putDoubles := func(vals []float64) uint32 {
		offset := extrasBase + uint32(extras.Len())
		for _, v := range vals {
			var b [8]byte
			order.PutUint64(b[:], math.Float64bits(v))
			extras.Write(b[:])
		}
		return offset
	}
	putAscii := func(s string) (uint32, uint32) {
		// Keep ASCII values out of line so every entry's value slot can
		// hold an offset; pad short strings past the 4-byte inline limit
		for len(s)+1 <= 4 {
			s += " "
		}
		offset := extrasBase + uint32(extras.Len())
		extras.WriteString(s)
		extras.WriteByte(0)
		if extras.Len()%2 == 1 {
			extras.WriteByte(0)
		}
		return offset, uint32(len(s) + 1)
	}
	putShorts := func(vals []uint16) uint32 {
		offset := extrasBase + uint32(extras.Len())
		for _, v := range vals {
			var b [2]byte
			order.PutUint16(b[:], v)
			extras.Write(b[:])
		}
		return offset
	}

	t := r.Transform
	scaleOffset := putDoubles([]float64{t[1], -t[5], 0})
	tiepointOffset := putDoubles([]float64{0, 0, 0, t[0], t[3], 0})

	crs := r.CRS + "|"
	crsOffset, crsLen := putAscii(crs)

	// GeoKey directory: projected model type, CRS citation in the ascii params
	geoKeysOffset := putShorts([]uint16{
		1, 1, 0, 2,
		1024, 0, 1, 1,
		3073, tagGeoAsciiParams, uint16(crsLen), 0,
	})

	noDataStr := "nan"
	sampleFormat := uint16(sampleFormatFloat)
	if integer {
		noDataStr = strconv.Itoa(intNoData)
		sampleFormat = sampleFormatInt
	}
	noDataOffset, noDataLen := putAscii(noDataStr)

	ifdOffset := extrasBase + uint32(extras.Len())

	type tagWrite struct {
		tag       uint16
		fieldType uint16
		count     uint32
		value     uint32
	}
	tags := []tagWrite{
		{tagImageWidth, 4, 1, uint32(r.Cols)},
		{tagImageLength, 4, 1, uint32(r.Rows)},
		{tagBitsPerSample, 3, 1, 32},
		{tagCompression, 3, 1, 1},
		{tagPhotometric, 3, 1, 1},
		{tagStripOffsets, 4, 1, pixelOffset},
		{tagSamplesPerPixel, 3, 1, 1},
		{tagRowsPerStrip, 4, 1, uint32(r.Rows)},
		{tagStripByteCounts, 4, 1, uint32(dataSize)},
		{tagPlanarConfig, 3, 1, 1},
		{tagSampleFormat, 3, 1, uint32(sampleFormat)},
		{tagModelPixelScale, 12, 3, scaleOffset},
		{tagModelTiepoint, 12, 6, tiepointOffset},
		{tagGeoKeyDirectory, 3, 12, geoKeysOffset},
		{tagGeoAsciiParams, 2, crsLen, crsOffset},
		{tagGDALNoData, 2, noDataLen, noDataOffset},
	}

	out := &bytes.Buffer{}
	out.WriteString("II")
	var b2 [2]byte
	var b4 [4]byte
	order.PutUint16(b2[:], 42)
	out.Write(b2[:])
	order.PutUint32(b4[:], ifdOffset)
	out.Write(b4[:])

	out.Write(pixels)
	out.Write(extras.Bytes())

	order.PutUint16(b2[:], uint16(len(tags)))
	out.Write(b2[:])
	for _, tag := range tags {
		order.PutUint16(b2[:], tag.tag)
		out.Write(b2[:])
		order.PutUint16(b2[:], tag.fieldType)
		out.Write(b2[:])
		order.PutUint32(b4[:], tag.count)
		out.Write(b4[:])

		// Values that fit in 4 bytes are stored inline, left-justified;
		// anything longer holds an offset into the extras area
		size := fieldTypeSize[tag.fieldType] * tag.count
		if size <= 4 && tag.fieldType == 3 {
			order.PutUint16(b4[0:2], uint16(tag.value))
			order.PutUint16(b4[2:4], 0)
		} else {
			order.PutUint32(b4[:], tag.value)
		}
		out.Write(b4[:])
	}
	order.PutUint32(b4[:], 0) // no next IFD
	out.Write(b4[:])

	return out.Bytes(), nil
}

// ReadGeoTIFFFile - convenience wrapper over DecodeGeoTIFF
func ReadGeoTIFFFile(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeGeoTIFF(data)
}

// WriteGeoTIFFFile - convenience wrapper over EncodeGeoTIFF
func WriteGeoTIFFFile(path string, r *Raster, integer bool) error {
	data, err := EncodeGeoTIFF(r, integer)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}
