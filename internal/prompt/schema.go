package prompt

// Schema is the subset of the Gemini response schema the caption call
// needs. It marshals to the REST wire format directly.
type Schema struct {
	Type             string             `json:"type"`
	Items            *Schema            `json:"items,omitempty"`
	Properties       map[string]*Schema `json:"properties,omitempty"`
	PropertyOrdering []string           `json:"propertyOrdering,omitempty"`
}

const (
	TypeString = "STRING"
	TypeNumber = "NUMBER"
	TypeObject = "OBJECT"
	TypeArray  = "ARRAY"
)

func str() *Schema { return &Schema{Type: TypeString} }
func num() *Schema { return &Schema{Type: TypeNumber} }

func object(order []string, props map[string]*Schema) *Schema {
	return &Schema{Type: TypeObject, Properties: props, PropertyOrdering: order}
}

// CaptionSchema describes a JSON array of caption options.
func CaptionSchema() *Schema {
	option := object(
		[]string{"category", "text", "hashtags", "strategy", "metrics", "analysis", "magicEditSuggestions"},
		map[string]*Schema{
			"category": str(),
			"text":     str(),
			"hashtags": {Type: TypeArray, Items: str()},
			"strategy": object([]string{"hook", "body", "cta"}, map[string]*Schema{
				"hook": str(),
				"body": str(),
				"cta":  str(),
			}),
			"metrics": object([]string{"visualImpact", "hookStrength", "retentionRate", "viralScore"}, map[string]*Schema{
				"visualImpact":  num(),
				"hookStrength":  num(),
				"retentionRate": num(),
				"viralScore":    num(),
			}),
			"analysis": object([]string{"targetAudience", "bestPostingTime", "whyItWorks"}, map[string]*Schema{
				"targetAudience":  str(),
				"bestPostingTime": str(),
				"whyItWorks":      str(),
			}),
			"magicEditSuggestions": {
				Type: TypeArray,
				Items: object([]string{"title", "description", "visualPrompt", "impact"}, map[string]*Schema{
					"title":        str(),
					"description":  str(),
					"visualPrompt": str(),
					"impact":       str(),
				}),
			},
		},
	)
	return &Schema{Type: TypeArray, Items: option}
}
