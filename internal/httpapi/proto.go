package httpapi

import (
	"mime"
	"net/http"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// protobufMediaTypes are the Content-Types that carry a binary
// google.protobuf.Struct instead of JSON.
var protobufMediaTypes = map[string]bool{
	"application/x-protobuf":   true,
	"application/protobuf":     true,
	"application/octet-stream": true,
}

// isProtobuf reports whether the request body, and so the response, uses
// the protobuf encoding. Media type parameters are ignored.
func isProtobuf(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return protobufMediaTypes[mt]
}

// protoStructToJSON decodes a binary google.protobuf.Struct and re-encodes
// it as JSON so both encodings share one schema path.
func protoStructToJSON(body []byte) ([]byte, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(body, &st); err != nil {
		return nil, err
	}
	return protojson.Marshal(&st)
}

// writeProto encodes v as a google.protobuf.Struct with the given status.
func writeProto(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	var st structpb.Struct
	if err := protojson.Unmarshal(raw, &st); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	data, err := proto.Marshal(&st)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
