package notify

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Sender delivers a notification through a platform mechanism
type Sender interface {
	Send(title, message string) error
}

// LinuxSender sends notifications on Linux using notify-send
type LinuxSender struct{}

func (LinuxSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSSender sends notifications on macOS using osascript
type MacOSSender struct{}

func (MacOSSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsSender sends notifications on Windows using a PowerShell balloon tip
type WindowsSender struct{}

func (WindowsSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		Add-Type -AssemblyName System.Windows.Forms
		$n = New-Object System.Windows.Forms.NotifyIcon
		$n.Icon = [System.Drawing.SystemIcons]::Information
		$n.Visible = $true
		$n.ShowBalloonTip(5000, '%s', '%s', 'None')
	`, title, message)
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Desktop forwards notices to the platform notification center
type Desktop struct {
	sender Sender
}

// NewDesktop picks a sender for the current platform. Unsupported
// platforms get a Desktop that drops notices.
func NewDesktop() *Desktop {
	var sender Sender
	switch runtime.GOOS {
	case "linux":
		sender = LinuxSender{}
	case "darwin":
		sender = MacOSSender{}
	case "windows":
		sender = WindowsSender{}
	}
	return &Desktop{sender: sender}
}

// Notify sends the notice; delivery errors are ignored since the terminal
// notifier already printed it.
func (d *Desktop) Notify(n Notice) {
	if d.sender == nil {
		return
	}
	_ = d.sender.Send(n.Title, n.Message)
}
