package plugin

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeOptions decodes free-form capture plan options into out, a pointer
// to a struct with mapstructure tags. Durations accept strings like "250ms"
// and numbers are converted between kinds. Unknown keys are rejected.
func DecodeOptions(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(opts); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}
