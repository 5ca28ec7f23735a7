package lab

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"labkit/internal/config"
)

const remote5 = "ks3343@clac.cs.columbia.edu:~/cs3157/lab5"

func TestLabMakefile_Lab5(t *testing.T) {
	got := LabMakefile("lab5", []string{"part1", "part2"}, config.DefaultSubmitCommand, remote5)

	want := strings.Join([]string{
		"all: makePart1 makePart2",
		"clean: cleanPart1 cleanPart2",
		"makePart1:\n\tcd part1; make all",
		"makePart2:\n\tcd part2; make all",
		"cleanPart1:\n\tcd part1; make clean",
		"cleanPart2:\n\tcd part2; make clean",
		"run:\n\t./${MAIN_OUT}",
		"valgrind:\n\tvalgrind --leak-check=yes ./${MAIN_OUT}",
		"pull:\n\trsync -az ks3343@clac.cs.columbia.edu:~/cs3157/lab5/ ./",
		"push:\n\trsync -az ./ ks3343@clac.cs.columbia.edu:~/cs3157/lab5",
		"submit:\n\t/home/w3157/submit/submit-lab lab5",
		".PHONY: all clean makePart1 makePart2 cleanPart1 cleanPart2 run valgrind pull push submit",
		"",
	}, "\n\n")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LabMakefile mismatch (-want +got):\n%s", diff)
	}
}

// targetDeps returns the prerequisites of target in a rendered Makefile.
func targetDeps(t *testing.T, makefile, target string) []string {
	t.Helper()
	for _, line := range strings.Split(makefile, "\n") {
		if rest, ok := strings.CutPrefix(line, target+":"); ok {
			return strings.Fields(rest)
		}
	}
	t.Fatalf("target %q not found in:\n%s", target, makefile)
	return nil
}

func TestLabMakefile_OneRulePerPartInOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(3157))

	cases := [][]int{{1}, {3, 1, 2}, {10, 2}}
	for i := 0; i < 20; i++ {
		perm := rng.Perm(1 + rng.Intn(8))
		for j := range perm {
			perm[j]++
		}
		cases = append(cases, perm)
	}

	for _, parts := range cases {
		t.Run(fmt.Sprint(parts), func(t *testing.T) {
			names := make([]string, len(parts))
			var wantMake, wantClean []string
			for i, n := range parts {
				names[i] = fmt.Sprintf("part%d", n)
				wantMake = append(wantMake, fmt.Sprintf("makePart%d", n))
				wantClean = append(wantClean, fmt.Sprintf("cleanPart%d", n))
			}

			mk := LabMakefile("lab1", names, "submit-lab", "u@h:~/d/lab1")

			if diff := cmp.Diff(wantMake, targetDeps(t, mk, "all")); diff != "" {
				t.Errorf("all deps mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(wantClean, targetDeps(t, mk, "clean")); diff != "" {
				t.Errorf("clean deps mismatch (-want +got):\n%s", diff)
			}
			for i, n := range parts {
				rule := fmt.Sprintf("%s:\n\tcd part%d; make all", wantMake[i], n)
				if strings.Count(mk, rule) != 1 {
					t.Errorf("expected exactly one %q rule", wantMake[i])
				}
				rule = fmt.Sprintf("%s:\n\tcd part%d; make clean", wantClean[i], n)
				if strings.Count(mk, rule) != 1 {
					t.Errorf("expected exactly one %q rule", wantClean[i])
				}
			}
		})
	}
}

func TestCMakeLists(t *testing.T) {
	got := CMakeLists("lab5_part1")
	want := "cmake_minimum_required(VERSION 3.9)\n" +
		"set(CMAKE_C_STANDARD 11)\n" +
		"project(lab5_part1 C)\n" +
		"\n" +
		"set(SOURCE_FILES\n)\n" +
		"\n" +
		"add_executable(lab5_part1 ${SOURCE_FILES})"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CMakeLists mismatch (-want +got):\n%s", diff)
	}
}

func TestCMakeLists_Deterministic(t *testing.T) {
	for _, name := range []string{"lab1", "lab5_part2", "x"} {
		if CMakeLists(name) != CMakeLists(name) {
			t.Errorf("CMakeLists(%q) not deterministic", name)
		}
	}
	if CMakeLists("lab1") == CMakeLists("lab2") {
		t.Error("different names should render differently")
	}
}

func TestPartMakefile(t *testing.T) {
	mk := PartMakefile()
	for _, want := range []string{
		"CC = gcc\n",
		"CFLAGS = -std=c11 -g -ggdb -Wall -Werror -Wextra -O3 -march=native -flto\n",
		"MAIN = main\n",
		"all: ${MAIN}\n",
		"clean:\n\trm -rf *.o ${MAIN}\n",
	} {
		if !strings.Contains(mk, want) {
			t.Errorf("part Makefile missing %q", want)
		}
	}
}

func TestGitIgnore_AlwaysHasInstructionsAndSubmission(t *testing.T) {
	for _, n := range []int{1, 5, 12, 100} {
		name := fmt.Sprintf("lab%d", n)
		lines := strings.Split(GitIgnore(name, InstructionsFileName(n)), "\n")

		has := func(s string) bool {
			for _, l := range lines {
				if l == s {
					return true
				}
			}
			return false
		}
		if !has(fmt.Sprintf("Lab %d Instructions.txt", n)) {
			t.Errorf("%s: instructions file not ignored", name)
		}
		if !has("*.mbox") {
			t.Errorf("%s: submission glob not ignored", name)
		}
		if !has(name + "-[0-9]*-[0-9]*-[0-9]*-[0-9]*") {
			t.Errorf("%s: backup pattern not ignored", name)
		}
	}
}

func TestGitIgnore_Exact(t *testing.T) {
	want := ".idea\nCMakeLists.txt\ncmake-build-debug\n\nLab 5 Instructions.txt\n*.mbox\nlab5-[0-9]*-[0-9]*-[0-9]*-[0-9]*\n\n*.o\n*.exe"
	if diff := cmp.Diff(want, GitIgnore("lab5", "Lab 5 Instructions.txt")); diff != "" {
		t.Errorf("GitIgnore mismatch (-want +got):\n%s", diff)
	}
}

func TestReadme(t *testing.T) {
	got := Readme(config.AuthorConfig{Name: "Ada Lovelace", UNI: "al0001"}, 5, []int{1, 2})

	wantPrefix := "Ada Lovelace\nUNI: al0001\nLab 5\n\n" + strings.Repeat("_", 80) + "\n\nDescription of Solution\n\n"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("README header mismatch:\n%s", got)
	}
	if !strings.Contains(got, "Part 1\n\n    \n\n\nPart 2\n\n    \n\n") {
		t.Errorf("README part sections mismatch:\n%q", got)
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"part1": "Part1",
		"Part1": "Part1",
		"":      "",
		"éa":    "Éa",
		"1abc":  "1abc",
	}
	for in, want := range tests {
		if got := Capitalize(in); got != want {
			t.Errorf("Capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommandLines(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			"clone",
			CloneCommandLine("ks3343@clac.cs.columbia.edu", "/home/jae/cs3157-pub", "lab5", "/labs/lab5"),
			"git clone ks3343@clac.cs.columbia.edu:/home/jae/cs3157-pub/lab5 /labs/lab5",
		},
		{
			"clone quotes spaces",
			CloneCommandLine("u@h", "/pub", "lab1", "/My Labs/lab1"),
			"git clone u@h:/pub/lab1 '/My Labs/lab1'",
		},
		{
			"clone quotes a leading tilde",
			CloneCommandLine("u@h", "/pub", "lab5", "~root/labs/lab5"),
			"git clone u@h:/pub/lab5 '~root/labs/lab5'",
		},
		{
			"push",
			PushCommandLine("/labs/lab5", remote5),
			"rsync -az /labs/lab5/ '" + remote5 + "'",
		},
		{
			"pull",
			PullCommandLine(remote5, "/labs/lab5"),
			"rsync -az '" + remote5 + "/' /labs/lab5/",
		},
		{
			"turnin",
			TurninCommandLine("/home/w3157/submit/submit-lab", "lab5", "ks3343@clac.cs.columbia.edu"),
			"echo '/home/w3157/submit/submit-lab lab5' | ssh ks3343@clac.cs.columbia.edu",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got  %q\nwant %q", tt.got, tt.want)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"plain/path": "plain/path",
		"":           "''",
		"a b":        "'a b'",
		"it's":       `'it'\''s'`,
		"~root/labs": "'~root/labs'",
		"u@h:~/d":    "'u@h:~/d'",
	}
	for in, want := range tests {
		if got := quote(in); got != want {
			t.Errorf("quote(%q) = %q, want %q", in, got, want)
		}
	}
}
