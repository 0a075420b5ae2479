// Command rnnt builds, inspects and runs RNN-Transducer models.
//
// Usage:
//
//	rnnt init --decoder decoder.yaml --joint joint.yaml -o model.gob
//	rnnt info model.gob
//	rnnt decode --model model.gob --input encoded.json
//	rnnt wer --ref ref.txt --hyp hyp.txt
package main

import "github.com/ieee0824/transducer-go/cmd/rnnt/cmd"

var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
