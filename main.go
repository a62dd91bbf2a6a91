package main

import (
	"flag"
	"log"
	"time"

	"softmaxgo/linear"
	"softmaxgo/metrics"
	"softmaxgo/mnist"
)

func main() {
	dataDir := flag.String("data", "data", "directory holding the MNIST idx files")
	iters := flag.Int("iters", 100, "optimizer iteration cap")
	lambda := flag.Float64("lambda", linear.DefaultLambda, "L2 regularization strength")
	workers := flag.Int("workers", 1, "goroutines for per-row softmax evaluation")
	heatmapOut := flag.String("heatmap", "confusion.png", "output path for the confusion-matrix heatmap")
	sampleOut := flag.String("sample", "", "optional path to dump the first test image as PNG")
	modelOut := flag.String("model", "", "optional path to save the trained weights as JSON")
	flag.Parse()

	train, test, err := mnist.Load(*dataDir)
	if err != nil {
		log.Fatalf("loading MNIST: %v", err)
	}
	log.Printf("loaded %d training and %d test samples", train.Len(), test.Len())

	if *sampleOut != "" {
		if err := mnist.SaveImagePNG(test, 0, *sampleOut); err != nil {
			log.Fatalf("saving sample image: %v", err)
		}
		log.Printf("wrote sample digit %d to %s", test.Labels[0], *sampleOut)
	}

	clf := linear.NewSoftmaxRegression(mnist.NumClasses, mnist.NumPixels,
		linear.WithLambda(*lambda),
		linear.WithOptimizer(&linear.LBFGS{MaxIterations: *iters}),
		linear.WithWorkers(*workers),
	)

	start := time.Now()
	if err := clf.Fit(train.Features, train.Labels); err != nil {
		log.Fatalf("fitting: %v", err)
	}
	log.Printf("fit took %v: %d iterations, loss=%.4f, converged=%v",
		time.Since(start).Round(time.Millisecond), clf.NIterations(), clf.Loss(), clf.Converged())

	trainAcc, err := clf.Score(train.Features, train.Labels)
	if err != nil {
		log.Fatalf("scoring training set: %v", err)
	}
	testAcc, err := clf.Score(test.Features, test.Labels)
	if err != nil {
		log.Fatalf("scoring test set: %v", err)
	}
	log.Printf("accuracy: train=%.4f test=%.4f", trainAcc, testAcc)

	preds, err := clf.Predict(test.Features)
	if err != nil {
		log.Fatalf("predicting test set: %v", err)
	}
	cm, err := metrics.Confusion(test.Labels, preds, mnist.NumClasses)
	if err != nil {
		log.Fatalf("building confusion matrix: %v", err)
	}
	for c := 0; c < cm.NumClasses(); c++ {
		if n := cm.RowSum(c); n > 0 {
			log.Printf("digit %d: %4d/%4d correct", c, cm.At(c, c), n)
		}
	}

	if err := renderHeatmap(cm, *heatmapOut); err != nil {
		log.Fatalf("rendering heatmap: %v", err)
	}
	log.Printf("wrote confusion-matrix heatmap to %s", *heatmapOut)

	if *modelOut != "" {
		if err := clf.Save(*modelOut); err != nil {
			log.Fatalf("saving model: %v", err)
		}
		log.Printf("wrote model weights to %s", *modelOut)
	}
}
