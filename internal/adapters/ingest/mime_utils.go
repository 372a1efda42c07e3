package ingest

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

const maxMultipartDepth = 5

var headerDecoder = &mime.WordDecoder{}

// decodeEncodedHeader decodes RFC 2047 encoded words such as =?UTF-8?B?...?=
func decodeEncodedHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractEmailAddress returns the bare address of "Name <user@example.com>"
func extractEmailAddress(s string) string {
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Address
	}
	start := strings.LastIndex(s, "<")
	end := strings.LastIndex(s, ">")
	if start >= 0 && end > start {
		return s[start+1 : end]
	}
	return strings.TrimSpace(s)
}

// extractTextFromMessage returns the plain text content of a message. For multipart
// messages every text/plain part is collected, nested multiparts included.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	var sb strings.Builder
	if err := collectText(&sb, msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

func collectText(sb *strings.Builder, contentType, encoding string, body io.Reader, depth int) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if contentType == "" || err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxMultipartDepth {
			return nil
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				// keep whatever was collected before the broken part
				if sb.Len() > 0 {
					return nil
				}
				return err
			}
			partType := part.Header.Get("Content-Type")
			partEncoding := part.Header.Get("Content-Transfer-Encoding")
			if err := collectText(sb, partType, partEncoding, part, depth+1); err != nil {
				return err
			}
		}
	}

	if mediaType != "text/plain" {
		return nil
	}

	data, err := io.ReadAll(decodeTransfer(encoding, body))
	if err != nil {
		return err
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.Write(bytes.TrimSpace(data))
	return nil
}

// Parts read through multipart.Reader arrive with quoted-printable already decoded
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
