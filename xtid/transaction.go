// Package xtid generates x-client-transaction-id headers for X web API requests.
//
// A SigningContext is derived once from the x.com home page (verification key and
// loading animation frames) and the ondemand.s bundle (key byte indices). Each
// request is then signed with a SHA-256 over method, path and time, masked with a
// random byte.
package xtid

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SigningContext holds the per-page signing material. It is immutable and safe
// for concurrent use.
type SigningContext struct {
	keyBytes       []byte
	rowIndex       int
	keyByteIndices []int
	animationKey   string
}

// Parser turns a home page and its on-demand bundle into a SigningContext.
// Any extractor can be swapped without touching the signing pipeline.
type Parser struct {
	Key      Extractor[string]
	Frames   Extractor[[]Frame]
	OnDemand Extractor[string]
	Indices  IndexScanner
}

// DefaultParser returns a Parser wired with the x.com extractors.
func DefaultParser() *Parser {
	return &Parser{
		Key:      KeyExtractor{},
		Frames:   FrameExtractor{},
		OnDemand: OnDemandExtractor{},
		Indices:  RegexIndexScanner{},
	}
}

// Parse builds a SigningContext from an already fetched home page and bundle source.
func (p *Parser) Parse(home *Document, onDemandJS string) (*SigningContext, error) {
	indices, err := p.Indices.Scan(onDemandJS)
	if err != nil {
		return nil, err
	}
	key, err := p.Key.Extract(home)
	if err != nil {
		return nil, err
	}
	keyBytes, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	frames, err := p.Frames.Extract(home)
	if err != nil {
		return nil, err
	}
	return NewSigningContext(keyBytes, frames, indices)
}

// NewSigningContext derives the animation key and returns the resulting context.
func NewSigningContext(keyBytes []byte, frames []Frame, indices Indices) (*SigningContext, error) {
	if len(indices.KeyBytes) == 0 {
		return nil, extractionErr("indices", ErrIndicesNotFound)
	}
	animKey, err := deriveAnimationKey(keyBytes, frames, indices)
	if err != nil {
		return nil, fmt.Errorf("build animation key: %w", err)
	}
	return &SigningContext{
		keyBytes:       slices.Clone(keyBytes),
		rowIndex:       indices.Row,
		keyByteIndices: slices.Clone(indices.KeyBytes),
		animationKey:   animKey,
	}, nil
}

// AnimationKey returns the derived animation key.
func (sc *SigningContext) AnimationKey() string { return sc.animationKey }

// KeyBytes returns a copy of the decoded verification key.
func (sc *SigningContext) KeyBytes() []byte { return slices.Clone(sc.keyBytes) }

// RowIndex returns the scraped row index.
func (sc *SigningContext) RowIndex() int { return sc.rowIndex }

// KeyByteIndices returns a copy of the scraped key byte indices in scan order.
func (sc *SigningContext) KeyByteIndices() []int { return slices.Clone(sc.keyByteIndices) }

func deriveAnimationKey(keyBytes []byte, frames []Frame, indices Indices) (string, error) {
	if len(keyBytes) <= frameSetByte {
		return "", fmt.Errorf("%w: key has %d bytes", ErrFrameRow, len(keyBytes))
	}
	if indices.Row < 0 || indices.Row >= len(keyBytes) {
		return "", fmt.Errorf("%w: row index %d outside %d key bytes", ErrFrameRow, indices.Row, len(keyBytes))
	}
	rowIndex := int(keyBytes[indices.Row]) % rowModulus

	// Indices past the end of the key contribute nothing to the product.
	frameTime := 1.0
	for _, idx := range indices.KeyBytes {
		if idx >= 0 && idx < len(keyBytes) {
			frameTime *= float64(int(keyBytes[idx]) % rowModulus)
		}
	}

	frameIndex := int(keyBytes[frameSetByte]) % frameCount
	if frameIndex >= len(frames) {
		return "", fmt.Errorf("%w: frame %d of %d", ErrFramesNotFound, frameIndex, len(frames))
	}
	frame := frames[frameIndex]
	if len(frame) == 0 {
		return "", fmt.Errorf("%w: frame %d has no path data", ErrFramesNotFound, frameIndex)
	}
	if rowIndex >= len(frame) {
		return "", fmt.Errorf("%w: row %d of %d in frame %d", ErrFrameRow, rowIndex, len(frame), frameIndex)
	}

	return animate(frame[rowIndex], frameTime/totalTime)
}

func animate(row []int, targetTime float64) (string, error) {
	if len(row) < minFrameRow {
		return "", fmt.Errorf("%w: row has %d values, need %d", ErrFrameRow, len(row), minFrameRow)
	}
	fromColor := []float64{float64(row[0]), float64(row[1]), float64(row[2]), 1}
	toColor := []float64{float64(row[3]), float64(row[4]), float64(row[5]), 1}
	fromRotation := []float64{0.0}
	toRotation := []float64{solve(float64(row[6]), 60.0, 360.0, true)}

	curveValues := row[7:]
	curves := make([]float64, len(curveValues))
	for i, v := range curveValues {
		curves[i] = solve(float64(v), isOdd(i), 1.0, false)
	}
	val := NewCubic(curves).Value(targetTime)

	color, err := interpolate(fromColor, toColor, val)
	if err != nil {
		return "", err
	}
	for i := range color {
		if color[i] < 0 {
			color[i] = 0
		}
	}
	rotation, err := interpolate(fromRotation, toRotation, val)
	if err != nil {
		return "", err
	}
	matrix := RotationToMatrix(rotation[0])

	var b strings.Builder
	for _, c := range color[:3] {
		b.WriteString(strconv.FormatInt(int64(math.RoundToEven(c)), 16))
	}
	for _, v := range matrix[:4] {
		rounded := math.Abs(math.RoundToEven(v*100) / 100)
		hexValue := strings.ToLower(floatToHex(rounded))
		switch {
		case strings.HasPrefix(hexValue, "."):
			b.WriteString("0" + hexValue)
		case hexValue == "":
			b.WriteString("0")
		default:
			b.WriteString(hexValue)
		}
	}
	b.WriteString("00")

	return strings.NewReplacer(".", "", "-", "").Replace(b.String()), nil
}

// GenerateID returns a transaction id for method and path signed at the current time.
func (sc *SigningContext) GenerateID(method, path string) string {
	return sc.GenerateIDAt(method, path, epochSeconds(time.Now()), byte(rand.IntN(256)))
}

// GenerateIDAt is GenerateID with the time field and XOR mask supplied by the caller.
// now is in seconds since the signing epoch (see EpochSeconds).
func (sc *SigningContext) GenerateIDAt(method, path string, now int64, mask byte) string {
	timeBytes := [4]byte{byte(now), byte(now >> 8), byte(now >> 16), byte(now >> 24)}

	hashInput := fmt.Sprintf("%s!%s!%d%s%s", method, path, now, defaultKeyword, sc.animationKey)
	hash := sha256.Sum256([]byte(hashInput))

	payload := make([]byte, 0, len(sc.keyBytes)+len(timeBytes)+16+1)
	payload = append(payload, sc.keyBytes...)
	payload = append(payload, timeBytes[:]...)
	payload = append(payload, hash[:16]...)
	payload = append(payload, additionalRandomNumber)

	out := make([]byte, len(payload)+1)
	out[0] = mask
	for i, b := range payload {
		out[i+1] = b ^ mask
	}
	return strings.TrimRight(base64.StdEncoding.EncodeToString(out), "=")
}

// EpochSeconds converts t into the id's time field: whole seconds since
// 2023-05-01T07:00:00Z.
func EpochSeconds(t time.Time) int64 { return epochSeconds(t) }

func epochSeconds(t time.Time) int64 {
	return int64(math.Floor(float64(t.UnixMilli()-epochOffsetMillis) / 1000))
}

// DecodeID reverses the XOR mask of a transaction id and returns the payload:
// key bytes, 4 little-endian time bytes, 16 hash bytes and the trailing constant.
func DecodeID(id string) ([]byte, error) {
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(id, "="))
	if err != nil {
		return nil, fmt.Errorf("decode transaction id: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("decode transaction id: %d bytes", len(raw))
	}
	mask := raw[0]
	payload := make([]byte, len(raw)-1)
	for i, b := range raw[1:] {
		payload[i] = b ^ mask
	}
	return payload, nil
}
