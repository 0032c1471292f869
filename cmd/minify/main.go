// Command minify writes minified copies of the templates and static assets
// that the server loads from dist/ in production.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

var mediaTypes = map[string]string{
	"css":  "text/css",
	"js":   "application/javascript",
	"html": "text/html",
}

func main() {
	var (
		inputFile  = flag.String("input", "", "Input file path")
		outputFile = flag.String("output", "", "Output file path")
		fileType   = flag.String("type", "", "File type (CSS, JS, or HTML)")
		all        = flag.Bool("all", false, "Minify templates/ and static/ into -dist")
		distDir    = flag.String("dist", "dist", "Output directory for -all")
	)
	flag.Parse()

	m := newMinifier()

	if *all {
		stats, err := minifyTree(m, []string{"templates", "static"}, *distDir)
		if err != nil {
			log.Fatalf("Minification failed: %v", err)
		}
		for _, s := range stats {
			fmt.Println(s)
		}
		fmt.Printf("Minified files are in %s/\n", *distDir)
		return
	}

	if *inputFile == "" || *outputFile == "" || *fileType == "" {
		log.Fatal("Usage: go run ./cmd/minify -input=<file> -output=<file> -type=<css|js|html> | -all [-dist=<dir>]")
	}
	mediaType, ok := mediaTypes[strings.ToLower(*fileType)]
	if !ok {
		log.Fatalf("Unsupported file type: %s (supported: css, js, html)", *fileType)
	}
	s, err := minifyFile(m, *inputFile, *outputFile, mediaType)
	if err != nil {
		log.Fatalf("Failed to minify %s: %v", *inputFile, err)
	}
	fmt.Println(s)
}

// newMinifier returns a minifier that leaves Go template actions intact.
func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
		TemplateDelims:   html.GoTemplateDelims,
	})
	return m
}

// minifyTree mirrors each root under dist. Files the minifier has no media
// type for (fonts, images) are copied as they are.
func minifyTree(m *minify.M, roots []string, dist string) ([]string, error) {
	var stats []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			dst := filepath.Join(dist, path)
			ext := strings.TrimPrefix(filepath.Ext(path), ".")
			if mediaType, ok := mediaTypes[ext]; ok {
				s, err := minifyFile(m, path, dst, mediaType)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				stats = append(stats, s)
				return nil
			}
			return copyFile(path, dst)
		})
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// minifyFile writes the minified form of src to dst and describes the
// size reduction.
func minifyFile(m *minify.M, srcPath, dstPath, mediaType string) (string, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return "", err
	}

	minified, err := m.Bytes(mediaType, src)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dstPath, minified, 0644); err != nil {
		return "", err
	}

	ratio := 0.0
	if len(src) > 0 {
		ratio = float64(len(src)-len(minified)) / float64(len(src)) * 100
	}
	return fmt.Sprintf("%s: %d bytes -> %d bytes (%.1f%% reduction)", srcPath, len(src), len(minified), ratio), nil
}

func copyFile(srcPath, dstPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
