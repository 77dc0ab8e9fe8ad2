package serialize_test

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/pallav-m/surya-isolation/internal/predictor"
	"github.com/pallav-m/surya-isolation/internal/serialize"
)

// ExampleNormalize shows a structured recognition result flattened into a
// JSON-compatible mapping.
func ExampleNormalize() {
	result := &predictor.Recognition{
		TextLines: []*predictor.TextLine{{
			Text:       "Hello",
			Confidence: 0.98,
			Bbox:       []float64{0, 0, 50, 10},
		}},
		ImageBbox: []float64{0, 0, 100, 100},
	}

	normalized := serialize.Normalize(result)

	data, err := json.Marshal(normalized)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
	// Output:
	// {"image_bbox":[0,0,100,100],"text_lines":[{"bbox":[0,0,50,10],"chars":[],"confidence":0.98,"polygon":[],"text":"Hello"}]}
}
