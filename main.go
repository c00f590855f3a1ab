// Corral puts one OpenAI compatible chat-completions endpoint in front of a
// set of cloud and locally hosted LLM backends.
//
// Usage:
//
//	corral                       serve with config.yaml from . or ./config
//	corral serve -c prod.yaml    serve with an explicit config file
//	corral config show           print the effective config, secrets redacted
//	corral config validate       check a config file and exit
//	corral version
package main

func main() {
	Execute()
}
