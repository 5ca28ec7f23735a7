// pattern: Functional Core

package lab

import (
	"context"
	"errors"
	"fmt"

	"labkit/internal/config"
	"labkit/internal/fstree"
	"labkit/internal/logging"
	"labkit/internal/pipeline"
	"labkit/internal/shell"
)

// File and directory names inside a lab.
const (
	GitDir          = ".git"
	GitIgnoreFile   = ".gitignore"
	ReadmeFile      = "README.txt"
	CMakeListsFile  = "CMakeLists.txt"
	MakefileFile    = "Makefile"
	SkeletonDir     = "skeleton"
	IdeaDir         = ".idea"
	CMakeBuildDebug = "cmake-build-debug"
	ObjectFiles     = "*.o"
	ExeFiles        = "*.exe"
	SubmissionFiles = "*.mbox"
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid lab configuration")

// ConfigError reports a missing or unusable Build option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("lab config: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Remote identifies the grading server. Empty fields take the defaults from
// config.DefaultConfig.
type Remote struct {
	Username      string
	Host          string
	ParentDir     string
	SkeletonDir   string
	SubmitCommand string
}

// Options are the inputs to Build.
type Options struct {
	Number           int
	PartNumbers      []int
	InstructionsPath string
	ParentDir        string
	Remote           Remote
	Author           config.AuthorConfig
}

// OptionsFromConfig fills the non-lab-specific fields from cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ParentDir: cfg.ResolvedParentDir(),
		Remote: Remote{
			Username:      cfg.Remote.Username,
			Host:          cfg.Remote.Host,
			ParentDir:     cfg.Remote.ParentDir,
			SkeletonDir:   cfg.Remote.SkeletonDir,
			SubmitCommand: cfg.Remote.SubmitCommand,
		},
		Author: cfg.Author,
	}
}

// Files are the generated files and fixed directories at the lab root.
type Files struct {
	CMakeLists   fstree.File
	Makefile     fstree.File
	GitIgnore    fstree.File
	Readme       fstree.File
	Instructions fstree.File
	Git          fstree.Dir
	Skeleton     fstree.Dir
}

// List returns the root files in creation order.
func (f Files) List() []fstree.File {
	return []fstree.File{f.CMakeLists, f.Makefile, f.GitIgnore, f.Readme, f.Instructions}
}

// PartFiles are the generated build files of one part.
type PartFiles struct {
	CMakeLists fstree.File
	Makefile   fstree.File
}

func (f PartFiles) List() []fstree.File {
	return []fstree.File{f.CMakeLists, f.Makefile}
}

// Part is one independently built executable of a lab.
type Part struct {
	Number   int
	Name     string // part<K>
	FullName string // lab<N>_part<K>
	Dir      fstree.Dir
	Files    PartFiles
}

// Lab is the immutable description of a lab directory and its remote, with
// lifecycle operations bound to it.
type Lab struct {
	Number               int
	Name                 string
	InstructionsPath     string
	InstructionsFileName string
	ParentDir            fstree.Dir
	Dir                  fstree.Dir
	Remote               Remote
	RemoteName           string // user@host
	RemoteDir            string // <remote parent>/lab<N>
	RemoteAddress        string // user@host:<remote dir>
	Author               config.AuthorConfig
	Parts                []Part
	Files                Files

	runner      shell.Runner
	logger      *logging.ScopedLogger
	observer    pipeline.Observer
	interactive bool
}

// Option configures the side-effecting half of a Lab.
type Option func(*Lab)

// WithRunner sets the command runner used by lifecycle operations.
func WithRunner(r shell.Runner) Option {
	return func(l *Lab) { l.runner = r }
}

// WithLogger sets the logger used by lifecycle operations.
func WithLogger(logger *logging.ScopedLogger) Option {
	return func(l *Lab) { l.logger = logger }
}

// WithObserver reports step progress to obs.
func WithObserver(obs pipeline.Observer) Option {
	return func(l *Lab) { l.observer = obs }
}

// WithInteractive runs remote commands (clone, sync) attached to the
// terminal so ssh can prompt for passwords.
func WithInteractive(interactive bool) Option {
	return func(l *Lab) { l.interactive = interactive }
}

// Build validates opts and describes the lab. It performs no I/O.
func Build(opts Options, options ...Option) (*Lab, error) {
	if opts.Number <= 0 {
		return nil, &ConfigError{Field: "number", Reason: "is required and must be positive"}
	}
	if len(opts.PartNumbers) == 0 {
		return nil, &ConfigError{Field: "part numbers", Reason: "are required"}
	}
	seen := make(map[int]bool, len(opts.PartNumbers))
	for _, n := range opts.PartNumbers {
		if n <= 0 {
			return nil, &ConfigError{Field: "part numbers", Reason: fmt.Sprintf("must be positive, got %d", n)}
		}
		if seen[n] {
			return nil, &ConfigError{Field: "part numbers", Reason: fmt.Sprintf("contain %d twice", n)}
		}
		seen[n] = true
	}
	if opts.InstructionsPath == "" {
		return nil, &ConfigError{Field: "instructions path", Reason: "is required"}
	}

	opts = withDefaults(opts)

	name := fmt.Sprintf("lab%d", opts.Number)
	parentDir := fstree.Of(opts.ParentDir)
	dir := parentDir.Dir(name)

	l := &Lab{
		Number:               opts.Number,
		Name:                 name,
		InstructionsPath:     opts.InstructionsPath,
		InstructionsFileName: InstructionsFileName(opts.Number),
		ParentDir:            parentDir,
		Dir:                  dir,
		Remote:               opts.Remote,
		RemoteName:           opts.Remote.Username + "@" + opts.Remote.Host,
		RemoteDir:            opts.Remote.ParentDir + "/" + name,
		Author:               opts.Author,
	}
	l.RemoteAddress = l.RemoteName + ":" + l.RemoteDir

	for _, n := range opts.PartNumbers {
		partName := fmt.Sprintf("part%d", n)
		fullName := name + "_" + partName
		partDir := dir.Dir(partName)
		l.Parts = append(l.Parts, Part{
			Number:   n,
			Name:     partName,
			FullName: fullName,
			Dir:      partDir,
			Files: PartFiles{
				CMakeLists: partDir.File(CMakeListsFile, fstree.Literal(CMakeLists(fullName))),
				Makefile:   partDir.File(MakefileFile, fstree.Computed(PartMakefile)),
			},
		})
	}

	l.Files = Files{
		CMakeLists: dir.File(CMakeListsFile, fstree.Literal(CMakeLists(name))),
		Makefile: dir.File(MakefileFile, fstree.Computed(func() string {
			return LabMakefile(name, l.PartNames(), l.Remote.SubmitCommand, l.RemoteAddress)
		})),
		GitIgnore: dir.File(GitIgnoreFile, fstree.Computed(func() string {
			return GitIgnore(name, l.InstructionsFileName)
		})),
		Readme: dir.File(ReadmeFile, fstree.Computed(func() string {
			return Readme(l.Author, l.Number, l.PartNumbers())
		})),
		Instructions: dir.File(l.InstructionsFileName, fstree.CopyOf(opts.InstructionsPath)),
		Git:          dir.Dir(GitDir),
		Skeleton:     dir.Dir(SkeletonDir),
	}

	for _, o := range options {
		o(l)
	}
	if l.runner == nil {
		l.runner = shell.NewExecRunner(nil)
	}
	if l.logger == nil {
		l.logger = logging.NopLogger()
	}

	return l, nil
}

func withDefaults(opts Options) Options {
	d := config.DefaultConfig()
	if opts.ParentDir == "" {
		opts.ParentDir = d.ResolvedParentDir()
	}
	if opts.Remote.Username == "" {
		opts.Remote.Username = d.Remote.Username
	}
	if opts.Remote.Host == "" {
		opts.Remote.Host = d.Remote.Host
	}
	if opts.Remote.ParentDir == "" {
		opts.Remote.ParentDir = d.Remote.ParentDir
	}
	if opts.Remote.SkeletonDir == "" {
		opts.Remote.SkeletonDir = d.Remote.SkeletonDir
	}
	if opts.Remote.SubmitCommand == "" {
		opts.Remote.SubmitCommand = d.Remote.SubmitCommand
	}
	if opts.Author.Name == "" {
		opts.Author.Name = d.Author.Name
	}
	if opts.Author.UNI == "" {
		opts.Author.UNI = d.Author.UNI
	}
	return opts
}

// InstructionsFileName is the name the instructions are copied to.
func InstructionsFileName(number int) string {
	return fmt.Sprintf("Lab %d Instructions.txt", number)
}

// PartNames returns part<K> for every part, in input order.
func (l *Lab) PartNames() []string {
	names := make([]string, len(l.Parts))
	for i, p := range l.Parts {
		names[i] = p.Name
	}
	return names
}

// PartNumbers returns the part numbers in input order.
func (l *Lab) PartNumbers() []int {
	nums := make([]int, len(l.Parts))
	for i, p := range l.Parts {
		nums[i] = p.Number
	}
	return nums
}

// Render evaluates every generated file without writing, keyed by path.
func (l *Lab) Render(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	files := l.Files.List()
	for _, p := range l.Parts {
		files = append(files, p.Files.List()...)
	}
	for _, f := range files {
		s, err := f.Render(ctx)
		if err != nil {
			return nil, err
		}
		out[f.Path()] = s
	}
	return out, nil
}
