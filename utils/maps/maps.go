package maps

import "github.com/mitchellh/mapstructure"

// Map2Struct takes an input structure and uses reflection to translate it to
// the output structure. output must be a pointer to a map or struct.
func Map2Struct(input interface{}, output interface{}) error {
	return mapstructure.Decode(input, output)
}

// Map2StructTagged decodes like Map2Struct but honors the given struct tag
// (e.g. "json") when matching keys.
func Map2StructTagged(input interface{}, output interface{}, tagName string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: tagName,
		Result:  output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
