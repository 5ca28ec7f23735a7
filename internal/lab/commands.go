// pattern: Functional Core

package lab

import (
	"fmt"
	"regexp"
	"strings"

	"labkit/internal/shell"
)

var shellSafeRe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// quote makes s a single shell word. A leading ~ is quoted so sh never
// expands a path Go treats as literal.
func quote(s string) string {
	if s != "" && shellSafeRe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// contents turns a directory operand into "copy what is inside" form for rsync.
func contents(dir string) string {
	return strings.TrimSuffix(dir, "/") + "/"
}

// CloneCommandLine clones the skeleton repository of labName into dir.
func CloneCommandLine(remoteName, skeletonDir, labName, dir string) string {
	return fmt.Sprintf("git clone %s %s", quote(remoteName+":"+skeletonDir+"/"+labName), quote(dir))
}

// PushCommandLine mirrors the contents of the local dir to the remote lab dir.
func PushCommandLine(dir, remoteAddress string) string {
	return fmt.Sprintf("rsync -az %s %s", quote(contents(dir)), quote(remoteAddress))
}

// PullCommandLine mirrors the remote lab dir into the local dir.
func PullCommandLine(remoteAddress, dir string) string {
	return fmt.Sprintf("rsync -az %s %s", quote(contents(remoteAddress)), quote(contents(dir)))
}

// TurninCommandLine pipes the grading server's submit command into ssh.
func TurninCommandLine(submitCommand, labName, remoteName string) string {
	return fmt.Sprintf("echo %s | ssh %s", quote(submitCommand+" "+labName), quote(remoteName))
}

// CloneCommand returns the skeleton clone for this lab.
func (l *Lab) CloneCommand() shell.Command {
	return shell.Command{
		Line:        CloneCommandLine(l.RemoteName, l.Remote.SkeletonDir, l.Name, l.Dir.Path()),
		Interactive: l.interactive,
	}
}

// CleanCommand runs make clean at the lab root.
func (l *Lab) CleanCommand() shell.Command {
	return shell.Command{Line: "make clean", Dir: l.Dir.Path()}
}

func (l *Lab) PushCommand() shell.Command {
	return shell.Command{
		Line:        PushCommandLine(l.Dir.Path(), l.RemoteAddress),
		Interactive: l.interactive,
	}
}

func (l *Lab) PullCommand() shell.Command {
	return shell.Command{
		Line:        PullCommandLine(l.RemoteAddress, l.Dir.Path()),
		Interactive: l.interactive,
	}
}

// TurninCommand is always interactive: the grading script asks for
// confirmation.
func (l *Lab) TurninCommand() shell.Command {
	return shell.Command{
		Line:        TurninCommandLine(l.Remote.SubmitCommand, l.Name, l.RemoteName),
		Interactive: true,
	}
}
