package discovery

import (
	"fmt"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords converts raw "key=value" strings into a map. A key
// without '=' is stored with an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			if parts[0] == "" {
				continue
			}
			txt[strings.ToLower(parts[0])] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[strings.ToLower(parts[0])] = ""
		}
	}
	return txt
}

// parseBool accepts the usual TXT spellings of a flag.
func parseBool(key, v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, key, v)
}

// applyTXT fills the typed fields of svc from its TXT records.
func applyTXT(svc *Service, txt TXTRecordMap) error {
	svc.Text = txt
	svc.Network = txt[TXTKeyNetwork]
	svc.Version = txt[TXTKeyVersion]
	if v, ok := txt[TXTKeyTLS]; ok {
		b, err := parseBool(TXTKeyTLS, v)
		if err != nil {
			return err
		}
		svc.TLS = b
	}
	return nil
}
