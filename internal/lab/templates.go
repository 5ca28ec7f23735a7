// pattern: Functional Core

package lab

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"labkit/internal/config"
)

// CMakeLists renders a CMakeLists.txt for a C project called name.
func CMakeLists(name string) string {
	return strings.Join([]string{
		"cmake_minimum_required(VERSION 3.9)",
		"set(CMAKE_C_STANDARD 11)",
		fmt.Sprintf("project(%s C)", name),
		"",
		"set(SOURCE_FILES\n)",
		"",
		fmt.Sprintf("add_executable(%s ${SOURCE_FILES})", name),
	}, "\n")
}

// PartMakefile renders the Makefile placed in each part directory.
func PartMakefile() string {
	return strings.Join([]string{
		"CC = gcc",
		"CFLAGS = -std=c11 -g -ggdb -Wall -Werror -Wextra -O3 -march=native -flto",
		"LFLAGS = -g -flto",
		"LDFLAGS = -lm",
		"",
		"MAIN = main",
		"",
		"all: ${MAIN}",
		"",
		"",
		"${MAIN}: ",
		"",
		"",
		"clean:\n\trm -rf *.o ${MAIN}",
		"",
	}, "\n")
}

// LabMakefile renders the top-level Makefile. all and clean delegate to one
// make<Part>/clean<Part> rule per part, in the order given.
func LabMakefile(labName string, partNames []string, submitCommand, remoteAddress string) string {
	var rules []string

	rules = append(rules,
		"all: "+prefixParts("make", partNames),
		"clean: "+prefixParts("clean", partNames),
	)
	for _, p := range partNames {
		rules = append(rules, partRule("make", "all", p))
	}
	for _, p := range partNames {
		rules = append(rules, partRule("clean", "clean", p))
	}

	rules = append(rules,
		"run:\n\t./${MAIN_OUT}",
		"valgrind:\n\tvalgrind --leak-check=yes ./${MAIN_OUT}",
		"pull:\n\t"+PullCommandLine(remoteAddress, "."),
		"push:\n\t"+PushCommandLine(".", remoteAddress),
		fmt.Sprintf("submit:\n\t%s %s", submitCommand, labName),
		".PHONY: "+strings.Join(phonyTargets(partNames), " "),
		"",
	)

	return strings.Join(rules, "\n\n")
}

func phonyTargets(partNames []string) []string {
	targets := []string{"all", "clean"}
	for _, p := range partNames {
		targets = append(targets, prefixed("make", p))
	}
	for _, p := range partNames {
		targets = append(targets, prefixed("clean", p))
	}
	return append(targets, "run", "valgrind", "pull", "push", "submit")
}

func prefixed(prefix, name string) string {
	return prefix + Capitalize(name)
}

func prefixParts(prefix string, partNames []string) string {
	names := make([]string, len(partNames))
	for i, p := range partNames {
		names[i] = prefixed(prefix, p)
	}
	return strings.Join(names, " ")
}

func partRule(prefix, command, partName string) string {
	return fmt.Sprintf("%s:\n\tcd %s; make %s", prefixed(prefix, partName), partName, command)
}

// GitIgnore renders the lab's .gitignore. The instructions copy, mbox
// submissions and timestamped backups of the lab are always ignored.
func GitIgnore(labName, instructionsFileName string) string {
	return strings.Join([]string{
		IdeaDir,
		CMakeListsFile,
		CMakeBuildDebug,
		"",
		instructionsFileName,
		SubmissionFiles,
		labName + "-[0-9]*-[0-9]*-[0-9]*-[0-9]*",
		"",
		ObjectFiles,
		ExeFiles,
	}, "\n")
}

// Readme renders the README.txt template with one section per part.
func Readme(author config.AuthorConfig, number int, partNumbers []int) string {
	lines := []string{
		author.Name,
		"UNI: " + author.UNI,
		fmt.Sprintf("Lab %d", number),
		"",
		strings.Repeat("_", 80),
		"",
		"Description of Solution",
		"",
		"My code works exactly as specified in the lab.",
		"",
	}
	for _, n := range partNumbers {
		lines = append(lines, fmt.Sprintf("Part %d\n\n    \n\n", n))
	}
	return strings.Join(lines, "\n")
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
