package main

import (
	"context"
	"fmt"

	"github.com/shpitdev/company-enricher/pkg/pipeline/core"
	"github.com/shpitdev/company-enricher/pkg/pipeline/worker"
	"github.com/shpitdev/company-enricher/test/template/processor"
)

func main() {
	p := processor.Processor{}
	runner := core.ProcessFunc[string, processor.Result](p.Process)

	out, err := worker.ProcessAll(context.Background(), []string{"  Acme   Labs "}, runner.Process, worker.Options{Workers: 1})
	if err != nil {
		panic(err)
	}
	fmt.Println(out[0].Output.Output)
}
