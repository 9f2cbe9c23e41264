package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"net/http"
	"os"
	"text/tabwriter"

	"objectsguesser/internal/config"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/service/ai"
	"objectsguesser/internal/service/ai/opencv"
	"objectsguesser/internal/service/imageio"
)

func main() {
	cfg := config.Load()

	source := flag.String("image", "", "Image file or http(s) URL")
	pixels := flag.String("pixels", "", "Treat -image as a raw HWC byte dump of this WxHxC shape")
	threshold := flag.Float64("threshold", cfg.DefaultThreshold, "Minimum detection score")
	out := flag.String("out", "", "Write the annotated image here (.png or .jpg)")
	asJSON := flag.Bool("json", false, "Print rows as JSON")
	flag.Parse()

	if *source == "" {
		flag.Usage()
		os.Exit(2)
	}

	logs, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logs.Close()

	labels, err := ai.LoadLabels(cfg.LabelsPath)
	if err != nil {
		log.Fatalf("Failed to load labels: %v", err)
	}

	model, err := opencv.NewModel(cfg, labels, logs)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	defer model.Close()

	face, err := ai.LoadFace(cfg.FontPath, cfg.FontSize)
	if err != nil {
		logs.Warning("Could not load font, using built-in face: %v", err)
	}
	annotator, err := ai.NewAnnotator(face, cfg.BoxColor)
	if err != nil {
		log.Fatalf("Invalid box color: %v", err)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: cfg.ProxyTimeout}

	var img image.Image
	if *pixels != "" {
		img, err = ai.LoadPixels(*source, *pixels)
	} else {
		img, err = imageio.Load(ctx, client, *source)
	}
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	detector := ai.NewDetectorService(model, annotator, logs)
	result, err := detector.Detect(ctx, img, *threshold)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	if *out != "" {
		if err := imageio.Save(*out, result.Image); err != nil {
			log.Fatalf("Failed to save annotated image: %v", err)
		}
	}

	if *asJSON {
		json.NewEncoder(os.Stdout).Encode(result.Rows)
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Label\tScore\tX1\tY1\tX2\tY2")
	for _, row := range result.Rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\n", row.Label, row.Score, row.X1, row.Y1, row.X2, row.Y2)
	}
	tw.Flush()

	if *out != "" {
		fmt.Printf("✅ Annotated image written to %s\n", *out)
	}
}
