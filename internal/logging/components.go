package logging

// Component names attached to log records as the "component" attribute.
const (
	ComponentStartup  = "startup"
	ComponentConfig   = "config"
	ComponentLoad     = "load"
	ComponentQuantize = "quantize"
	ComponentTiles    = "tiles"
	ComponentSave     = "save"
	ComponentPreview  = "preview"
)
