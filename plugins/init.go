// Package plugins registers all built-in capture plan actions.
package plugins

import (
	"firestige.xyz/tzspd/pkg/plugin"
	"firestige.xyz/tzspd/plugins/filter/parsed"
	"firestige.xyz/tzspd/plugins/parser/sip"
	"firestige.xyz/tzspd/plugins/reporter/console"
	"firestige.xyz/tzspd/plugins/reporter/hep"
	"firestige.xyz/tzspd/plugins/reporter/kafka"
)

func init() {
	// parsers
	plugin.RegisterAction("sip", sip.NewSIPParser)

	// filters
	plugin.RegisterAction("require_parsed", parsed.NewFilter)

	// reporters
	plugin.RegisterAction("log", console.NewConsoleReporter)
	plugin.RegisterAction("hep", hep.NewHEPReporter)
	plugin.RegisterAction("kafka", kafka.NewKafkaReporter)
}
