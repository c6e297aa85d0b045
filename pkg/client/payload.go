package client

import (
	"context"
	"io"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// Blob marks a positional argument that must be uploaded before it can be
// sent to the server, rather than serialized inline. A blob-typed schema
// entry on the endpoint's ParamSchema triggers the upload.
type Blob struct {
	Reader   io.Reader
	Filename string
}

// ParamSchema describes one positional argument's wire shape, enough for
// the payload preparer to decide whether it needs uploading.
type ParamSchema struct {
	Binary bool
}

// preparePayload walks args in order, uploading any Blob values through the
// Upload collaborator and replacing them with the server-returned reference,
// and passes every other value through unchanged. Order is preserved.
func preparePayload(ctx context.Context, rootURL string, args []any, schema []ParamSchema, upload Config) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		isBinary := i < len(schema) && schema[i].Binary
		blob, ok := arg.(Blob)
		if !isBinary || !ok {
			out[i] = arg
			continue
		}
		if upload.UploadFunc == nil {
			return nil, pkgerrors.NewServerError("no upload collaborator configured for binary argument", nil)
		}
		ref, err := upload.UploadFunc(ctx, rootURL, blob.Reader, blob.Filename)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "upload failed")
		}
		out[i] = ref
	}
	return out, nil
}
