package extract

import (
	"strings"

	"msgraphextract/internal/graph"
)

// Record is a message flattened for export: address fields hold plain
// strings, everything else is passed through from Graph.
type Record map[string]any

// AddressSeparator joins recipient lists.
const AddressSeparator = ";"

// Normalize flattens the address fields of msg. sender and from become
// the bare address; recipient lists become addresses joined in order.
// Fields that are already strings are left alone, so Normalize is
// idempotent.
func Normalize(msg graph.Message) Record {
	rec := make(Record, len(msg))
	for field, value := range msg {
		switch field {
		case "sender", "from":
			rec[field] = singleAddress(value)
		case "toRecipients", "ccRecipients", "bccRecipients", "replyTo":
			rec[field] = joinAddresses(value)
		default:
			rec[field] = value
		}
	}
	return rec
}

func singleAddress(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return recipientAddress(t)
	case nil:
		return ""
	default:
		return v
	}
}

func joinAddresses(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		addrs := make([]string, 0, len(t))
		for _, item := range t {
			r, _ := item.(map[string]any)
			addrs = append(addrs, recipientAddress(r))
		}
		return strings.Join(addrs, AddressSeparator)
	case nil:
		return ""
	default:
		return v
	}
}

// recipientAddress reads {"emailAddress": {"address": ...}}.
func recipientAddress(r map[string]any) string {
	ea, _ := r["emailAddress"].(map[string]any)
	addr, _ := ea["address"].(string)
	return addr
}

// StringField returns the field as a string, or "" when absent or not a string.
func (r Record) StringField(field string) string {
	s, _ := r[field].(string)
	return s
}

// ID is the service-assigned message id used for attachment requests.
func (r Record) ID() string { return r.StringField("id") }

func (r Record) Subject() string { return r.StringField("subject") }

func (r Record) InternetMessageID() string { return r.StringField("internetMessageId") }

// BodyContent returns body.content, or "" when missing.
func (r Record) BodyContent() string {
	body, _ := r["body"].(map[string]any)
	content, _ := body["content"].(string)
	return content
}
