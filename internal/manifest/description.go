package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caridad-cloud/allocation-service/internal/domain"
)

// Legacy tag keys the donation-records backend expects inside descripcion.
const (
	tagRequesterCI = "ci"
	tagRequestCode = "pedido"
	tagWarehouse   = "almacen"
)

// EncodeDescription renders package metadata in the backend's legacy
// descripcion format: a free-text prefix followed by |-delimited key:value
// tags. This is the only point where the string form is produced; everything
// upstream works with domain.PackageMetadata.
func EncodeDescription(text string, meta domain.PackageMetadata) string {
	segments := []string{
		text,
		tagRequesterCI + ":" + meta.RequesterCI,
		tagRequestCode + ":" + meta.RequestCode,
		tagWarehouse + ":" + strconv.Itoa(meta.WarehouseID),
	}
	return strings.Join(segments, "|")
}

// DecodeDescription parses a legacy descripcion string back into its free-text
// prefix and metadata. Unknown tags are ignored so older records stay readable.
func DecodeDescription(s string) (string, domain.PackageMetadata, error) {
	segments := strings.Split(s, "|")
	text := segments[0]

	var meta domain.PackageMetadata
	for _, seg := range segments[1:] {
		key, value, ok := strings.Cut(seg, ":")
		if !ok {
			return text, meta, fmt.Errorf("malformed descripcion tag %q", seg)
		}
		switch key {
		case tagRequesterCI:
			meta.RequesterCI = value
		case tagRequestCode:
			meta.RequestCode = value
		case tagWarehouse:
			id, err := strconv.Atoi(value)
			if err != nil {
				return text, meta, fmt.Errorf("descripcion warehouse tag %q: %w", value, err)
			}
			meta.WarehouseID = id
		}
	}
	return text, meta, nil
}
