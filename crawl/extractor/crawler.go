package extractor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	goeval "github.com/edisonguo/govaluate"
	"github.com/nci/gbathy/catalog"
)

const DefaultManifestName = "scene.yaml"

// ParsePatternExpression compiles a crawl pattern over the variables
// path and type ("d" or "f"). An empty pattern matches everything.
func ParsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": struct{}{}, "type": struct{}{}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, validVariables)
			}
		}
	}
	return expr, nil
}

const DefaultMaxCrawlErrors = 1000

// SceneCrawler walks a directory tree concurrently and hands every
// scene manifest it finds to a sink. Directories and files for which
// the pattern is false are skipped.
type SceneCrawler struct {
	Outputs       chan *catalog.SceneRecord
	Error         chan error
	wg            sync.WaitGroup
	concLimit     chan struct{}
	outputDone    chan struct{}
	pattern       *goeval.EvaluableExpression
	followSymlink bool
	manifestName  string
	sink          func(*catalog.SceneRecord) error
}

// NewSceneCrawler returns a crawler running up to conc directory
// readers. sink is called from a single goroutine.
func NewSceneCrawler(conc int, pattern *goeval.EvaluableExpression, followSymlink bool, manifestName string, sink func(*catalog.SceneRecord) error) *SceneCrawler {
	if conc < 1 {
		conc = 1
	}
	if len(manifestName) == 0 {
		manifestName = DefaultManifestName
	}
	return &SceneCrawler{
		Outputs:       make(chan *catalog.SceneRecord, 4096),
		Error:         make(chan error, 100),
		wg:            sync.WaitGroup{},
		concLimit:     make(chan struct{}, conc),
		outputDone:    make(chan struct{}, 1),
		pattern:       pattern,
		followSymlink: followSymlink,
		manifestName:  manifestName,
		sink:          sink,
	}
}

func (pc *SceneCrawler) Crawl(rootDir string) error {
	currPath, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	go pc.outputResult()

	pc.wg.Add(1)
	pc.concLimit <- struct{}{}
	pc.crawlDir(currPath, false)
	pc.wg.Wait()

	close(pc.Outputs)
	<-pc.outputDone

	close(pc.Error)
	var errors []string
	errCount := 0
	for err := range pc.Error {
		errors = append(errors, err.Error())
		errCount++
		if errCount >= DefaultMaxCrawlErrors {
			errors = append(errors, " ... too many errors")
			break
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (pc *SceneCrawler) sendError(err error) {
	select {
	case pc.Error <- err:
	default:
	}
}

func (pc *SceneCrawler) crawlDir(currPath string, serialised bool) {
	defer pc.wg.Done()
	if !serialised {
		defer func() { <-pc.concLimit }()
	}
	entries, err := os.ReadDir(currPath)
	if err != nil {
		pc.sendError(err)
		return
	}

	for _, entry := range entries {
		filePath := filepath.Join(currPath, entry.Name())
		kind, err := pc.entryKind(filePath, entry)
		if err != nil {
			pc.sendError(err)
			continue
		}
		if kind == entryOther {
			continue
		}

		if pc.pattern != nil {
			result, err := pc.evaluatePatternExpression(filePath, kind)
			if err != nil {
				pc.sendError(err)
				continue
			}
			if !result {
				continue
			}
		}

		if kind == entryDir {
			pc.wg.Add(1)
			select {
			case pc.concLimit <- struct{}{}:
				go pc.crawlDir(filePath, false)
			default:
				pc.crawlDir(filePath, true)
			}
			continue
		}

		if entry.Name() != pc.manifestName {
			continue
		}

		rec, err := ExtractSceneYaml(filePath)
		if err != nil {
			pc.sendError(err)
			continue
		}
		pc.Outputs <- rec
	}
}

type entryKind int

const (
	entryOther entryKind = iota
	entryDir
	entryFile
)

// entryKind classifies a directory entry, resolving symlinks only when
// the crawler follows them.
func (pc *SceneCrawler) entryKind(filePath string, entry fs.DirEntry) (entryKind, error) {
	mode := entry.Type()
	if mode&fs.ModeSymlink != 0 {
		if !pc.followSymlink {
			return entryOther, nil
		}
		st, err := os.Stat(filePath)
		if err != nil {
			return entryOther, err
		}
		mode = st.Mode().Type()
	}

	switch {
	case mode.IsDir():
		return entryDir, nil
	case mode.IsRegular():
		return entryFile, nil
	}
	return entryOther, nil
}

func (pc *SceneCrawler) evaluatePatternExpression(filePath string, kind entryKind) (bool, error) {
	fileType := "f"
	if kind == entryDir {
		fileType = "d"
	}

	parameters := map[string]interface{}{"type": fileType, "path": filePath}
	result, err := pc.pattern.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}

func (pc *SceneCrawler) outputResult() {
	for rec := range pc.Outputs {
		if pc.sink == nil {
			continue
		}
		if err := pc.sink(rec); err != nil {
			pc.sendError(fmt.Errorf("scene %s: %v", rec.ID, err))
		}
	}
	pc.outputDone <- struct{}{}
}
