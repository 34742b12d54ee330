// Command train-plates trains the plate character network on a directory of
// labeled images and reports the error of every epoch.
//
//	train-plates -sub placas -hidden 150 -epochs 500 -rate 0.2
package main

import (
	"flag"
	"io"
	"log"

	"github.com/klauspost/cpuid/v2"
	ann "github.com/syhv-git/gonn-plates"
	"github.com/syhv-git/gonn-plates/dataset"
	"github.com/syhv-git/gonn-plates/label"
	"gonum.org/v1/gonum/mat"
)

func main() {
	def := ann.DefaultConfig()
	root := flag.String("root", dataset.DefaultRoot, "directory holding the training subdirectories")
	sub := flag.String("sub", "", "subdirectory of root with the images")
	rate := flag.Float64("rate", def.Rate, "learning rate")
	epochs := flag.Int("epochs", def.Epochs, "number of epochs")
	momentum := flag.Float64("momentum", def.Momentum, "momentum coefficient")
	hidden := flag.Int("hidden", def.HiddenN, "hidden neuron count")
	rule := flag.String("rule", ann.MomentumBlend.String(), "update rule: momentum-blend or plain-gradient")
	check := flag.String("check", dataset.FilenameLength.String(), "name length check: filename or label")
	seed := flag.Int64("seed", 0, "weight initialization seed, 0 seeds from the clock")
	runs := flag.Int("runs", 1, "independent training runs, the lowest final error is kept")
	quiet := flag.Bool("quiet", false, "do not log every epoch")
	flag.Parse()

	log.Printf("cpu: %s, %d cores, avx2=%t fma3=%t", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores,
		cpuid.CPU.Supports(cpuid.AVX2), cpuid.CPU.Supports(cpuid.FMA3))

	conf := ann.NewConfig(*hidden, *epochs, *rate, *momentum)
	conf.Seed = *seed
	var err error
	if conf.Rule, err = ann.ParseUpdateRule(*rule); err != nil {
		log.Fatal(err.Error())
	}
	if err = conf.Validate(); err != nil {
		log.Fatal(err.Error())
	}
	nameCheck, err := dataset.ParseCheck(*check)
	if err != nil {
		log.Fatal(err.Error())
	}

	dir := dataset.Path(*root, *sub)
	ds, err := dataset.Build(dataset.Options{Dir: dir, Check: nameCheck})
	if err != nil {
		log.Fatal(err.Error())
	}
	log.Printf("loaded %d images from %s", ds.Len(), dir)

	var epochLog *log.Logger
	if *quiet {
		epochLog = log.New(io.Discard, "", 0)
	}
	best, err := ann.CreateAccurateANN(conf, ds, *runs, epochLog)
	if err != nil {
		log.Fatal(err.Error())
	}

	if err := best.Test(ds); err != nil {
		log.Fatal(err.Error())
	}
	log.Printf("best run %s: error percentage %f, accuracy %.2f", best.RunID, best.FinalError(), best.Config.Accuracy)
	report(best, ds)
}

func report(nn *ann.ANN, ds *dataset.Dataset) {
	x, _, err := ds.Matrices()
	if err != nil {
		log.Fatal(err.Error())
	}
	out, err := nn.Predict(x)
	if err != nil {
		log.Fatal(err.Error())
	}
	for i, name := range ds.Names {
		got, err := label.Decode(mat.Row(nil, i, out))
		if err != nil {
			log.Printf("%s: %v", name, err)
			continue
		}
		log.Printf("%s -> %q", name, got)
	}
}
