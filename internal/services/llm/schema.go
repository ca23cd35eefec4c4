package llm

import (
	"reflect"
	"strings"

	"google.golang.org/genai"

	"github.com/ternarybob/scriptor/internal/models"
)

// requiredArticleFields are the output fields the generator must always fill
var requiredArticleFields = []string{
	"Headline",
	"Subtitle",
	"Teaser",
	"Direct_Answer",
	"Intro",
	"Meta_Title",
	"Meta_Description",
}

// articleSchema derives the structured-output schema from the article
// struct's JSON tags so the schema cannot drift from the model.
func articleSchema() *genai.Schema {
	properties := make(map[string]*genai.Schema)

	t := reflect.TypeOf(models.ArticleOutput{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("json"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			properties[tag] = &genai.Schema{Type: genai.TypeString}
		case reflect.Slice:
			if tag == "tables" {
				properties[tag] = tableArraySchema()
			}
		}
	}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   requiredArticleFields,
	}
}

func tableArraySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":   {Type: genai.TypeString},
				"headers": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"rows": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
			},
			Required: []string{"title", "headers", "rows"},
		},
	}
}
