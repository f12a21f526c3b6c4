package synth

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/beevik/etree"

	"apiconform/internal/model"
)

// buildBody renders a synthesized value for body per its declared media
// type. JSON uses the standard encoder; XML is assembled with
// github.com/beevik/etree so nested objects become nested elements rather
// than hand-joined strings; anything else falls back to a plain text
// representation (spec.md §4.2 "generate a JSON, XML, or text body").
func buildBody(rng *rand.Rand, body model.MediaBody) ([]byte, string, error) {
	value := generateValue(rng, body.Schema, 0)
	switch {
	case strings.Contains(body.MediaType, "json"):
		data, err := json.Marshal(value)
		return data, body.MediaType, err
	case strings.Contains(body.MediaType, "xml"):
		data, err := buildXML(value)
		return data, body.MediaType, err
	default:
		return []byte(fmt.Sprint(value)), body.MediaType, nil
	}
}

func buildXML(value interface{}) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("root")
	appendXMLValue(root, "item", value)
	doc.Indent(0)
	return doc.WriteToBytes()
}

func appendXMLValue(parent *etree.Element, tag string, value interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		el := parent.CreateElement(tag)
		for k, val := range v {
			appendXMLValue(el, k, val)
		}
	case []interface{}:
		for _, item := range v {
			appendXMLValue(parent, tag, item)
		}
	default:
		el := parent.CreateElement(tag)
		el.SetText(fmt.Sprint(v))
	}
}
