package action

import (
	"context"

	"task-agent/internal/application/port/output"
)

type PageReader interface {
	Read(ctx context.Context, url string) (string, error)
}

func ReadWebpage(reader PageReader) output.ActionDescriptor {
	return output.ActionDescriptor{
		Name:        "read_webpage",
		Description: "Read the text content of a web page. Scripts, styles and markup are stripped; link targets follow their text.",
		Parameters: []output.ActionParam{
			{Name: "url", Type: "string", Required: true, Description: "The http or https URL of the page"},
		},
		OutputType: "str",
		Handler: func(ctx context.Context, _ output.ActionContext, args map[string]any) (any, error) {
			url, err := stringArg(args, "url")
			if err != nil {
				return nil, err
			}
			return reader.Read(ctx, url)
		},
	}
}
