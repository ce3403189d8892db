package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/scusemua/notebook-kernel-client/common/configuration"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/api"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/client"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/connection"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel-client/common/metrics"
	"github.com/scusemua/notebook-kernel-client/common/utils"
)

const (
	readyTimeout    = time.Second * 60
	shutdownTimeout = time.Second * 10
)

var (
	options      = configuration.KernelClientOptions{}
	globalLogger = config.GetLogger("")
	sig          = make(chan os.Signal, 1)

	errKernelUnavailable = errors.New("kernel did not become ready")
)

func init() {
	lipgloss.SetColorProfile(termenv.ANSI256)

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
}

// ValidateOptions ensures that the options/configuration is valid.
func ValidateOptions() {
	flags, err := config.ValidateOptions(&options)
	if errors.Is(err, config.ErrPrintUsage) {
		flags.PrintDefaults()
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}
}

// loadCode returns the code to execute, or the empty string if there is none.
func loadCode() (string, error) {
	if options.ExecuteFile == "" {
		return options.ExecuteCode, nil
	}

	contents, err := os.ReadFile(options.ExecuteFile)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read \"%s\"", options.ExecuteFile)
	}

	return string(contents), nil
}

// attachOrStart returns the configured kernel, starting a new one if no kernel ID was given.
func attachOrStart(ctx context.Context, restClient *api.RestClient) (*api.Kernel, error) {
	if options.KernelId != "" {
		kernel, err := restClient.GetKernel(ctx, options.KernelId)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to attach to kernel %s", options.KernelId)
		}

		globalLogger.Info("Attached to kernel %s (%s).", kernel.ID, kernel.Name)
		return kernel, nil
	}

	kernel, err := restClient.StartKernel(ctx, options.KernelName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start a \"%s\" kernel", options.KernelName)
	}

	globalLogger.Info("Started kernel %s (%s).", kernel.ID, kernel.Name)
	return kernel, nil
}

// waitUntilReady blocks until the kernel client reports that the kernel is ready.
func waitUntilReady(kc *client.KernelClient) error {
	var once sync.Once
	ready := make(chan struct{})
	terminal := make(chan client.StatusEvent, 1)

	unsubscribe := kc.Statuses().Subscribe(func(event client.StatusEvent) {
		globalLogger.Debug("Kernel status: %s", utils.StatusStyle(event.Status.String()).Render(event.String()))

		if event.Status == client.StatusReady {
			once.Do(func() { close(ready) })
		} else if event.Status.IsTerminal() {
			select {
			case terminal <- event:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := kc.StartChannels(); err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case event := <-terminal:
		return errors.Wrap(errKernelUnavailable, event.String())
	case <-time.After(readyTimeout):
		return errors.Wrapf(errKernelUnavailable, "timed out after %v", readyTimeout)
	case s := <-sig:
		return errors.Wrapf(errKernelUnavailable, "received %v", s)
	}
}

func printOutput(msg *messaging.Message) error {
	switch msg.Type() {
	case messaging.IOStreamMessage:
		var content messaging.StreamContent
		if err := msg.DecodeContent(&content); err != nil {
			return err
		}

		if content.Name == "stderr" {
			fmt.Fprint(os.Stderr, utils.StreamStyle(content.Name).Render(content.Text))
		} else {
			fmt.Print(utils.StreamStyle(content.Name).Render(content.Text))
		}
	case messaging.IOExecuteResultMessage, messaging.IODisplayDataMessage:
		var content messaging.ExecuteResultContent
		if err := msg.DecodeContent(&content); err != nil {
			return err
		}

		if text, ok := content.Data["text/plain"].(string); ok {
			if content.ExecutionCount > 0 {
				fmt.Print(utils.GrayStyle.Render(fmt.Sprintf("Out[%d]: ", content.ExecutionCount)))
			}
			fmt.Println(text)
		}
	case messaging.IOErrorMessage:
		fmt.Fprintln(os.Stderr, utils.RedStyle.Render(fmt.Sprintf("%s: %s", msg.ContentString("ename"), msg.ContentString("evalue"))))
	}

	return nil
}

// answerInput prompts on the terminal and replies to the kernel's input request.
// The terminal is read on its own goroutine so that the client keeps receiving messages.
func answerInput(kc *client.KernelClient, stdin *bufio.Reader) client.MessageHandler {
	return func(msg *messaging.Message) error {
		var request messaging.InputRequestContent
		if err := msg.DecodeContent(&request); err != nil {
			return err
		}

		go func() {
			fmt.Print(utils.LightBlueStyle.Render(request.Prompt))

			line, err := stdin.ReadString('\n')
			if err != nil && line == "" {
				globalLogger.Warn(utils.OrangeStyle.Render("Failed to read input: %v"), err)
			}

			if err := kc.SendInputReply(strings.TrimRight(line, "\r\n")); err != nil {
				globalLogger.Error("Failed to send input reply: %v", err)
			}
		}()

		return nil
	}
}

// execute runs code on the kernel and blocks until the request is done. A signal interrupts the kernel.
func execute(kc *client.KernelClient, code string) (bool, error) {
	future, err := kc.Execute(code,
		client.WithSilent(false),
		client.WithStoreHistory(true),
		client.WithAllowStdin(options.AllowStdin),
		client.WithIOPubHandler(printOutput),
		client.WithStdinHandler(answerInput(kc, bufio.NewReader(os.Stdin))))
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case s := <-sig:
			globalLogger.Warn(utils.OrangeStyle.Render("Received %v. Interrupting the kernel."), s)
			if err := kc.Interrupt(ctx); err != nil {
				globalLogger.Error("Failed to interrupt kernel: %v", err)
			}
		case <-ctx.Done():
		}
	}()

	reply, err := future.Wait(ctx)
	if err != nil {
		return false, err
	}

	return reply.ContentString("status") == messaging.MessageStatusOK, nil
}

func finalize(kc *client.KernelClient) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if options.ShutdownOnExit {
		if err := kc.Shutdown(ctx); err != nil {
			globalLogger.Error("Failed to shut down kernel %s: %v", kc.ID(), err)
		} else {
			globalLogger.Info("Shut down kernel %s.", kc.ID())
		}
	}

	if err := kc.Dispose(ctx); err != nil {
		globalLogger.Warn("Error while disposing of the kernel client: %v", err)
	}
}

func main() {
	// Ensure that the options/configuration is valid.
	ValidateOptions()

	if options.Token == "" {
		options.Token = utils.GetEnv("JUPYTER_TOKEN", "")
	}

	if options.PrettyPrintOptions {
		globalLogger.Info("Starting the kernel client with the following options:\n%s\n", options.PrettyString(2))
	}

	code, err := loadCode()
	if err != nil {
		log.Fatal(err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), readyTimeout)
	restClient := api.NewRestClient(options.BaseUrl, options.Token, nil)
	kernel, err := attachOrStart(startCtx, restClient)
	cancelStart()
	if err != nil {
		log.Fatal(err)
	}
	options.KernelId = kernel.ID

	kernelMetrics, err := metrics.NewKernelClientMetrics(kernel.ID)
	if err != nil {
		log.Fatal(err)
	}

	if options.PrometheusPort > 0 {
		prometheusServer, err := metrics.NewPrometheusServer(options.PrometheusPort, kernelMetrics)
		if err != nil {
			log.Fatal(err)
		}

		if err := prometheusServer.Start(); err != nil {
			log.Fatal(err)
		}
		defer func() {
			_ = prometheusServer.Stop(context.Background())
		}()
	}

	kc, err := client.NewKernelClient(options.ClientOptions(), connection.NewWebsocketDialer(options.Token), restClient, kernelMetrics)
	if err != nil {
		log.Fatal(err)
	}
	defer finalize(kc)

	if err := waitUntilReady(kc); err != nil {
		globalLogger.Error(utils.RedStyle.Render("%v"), err)
		return
	}

	if info := kc.Info(); info != nil && info.Banner != "" {
		fmt.Println(utils.GrayStyle.Render(info.Banner))
	}

	if code == "" {
		globalLogger.Info("Kernel %s is ready. Nothing to execute.", kc.ID())
		return
	}

	ok, err := execute(kc, code)
	if err != nil {
		globalLogger.Error(utils.RedStyle.Render("Execution failed: %v"), err)
		return
	}

	if !ok {
		globalLogger.Warn(utils.OrangeStyle.Render("Execution finished with an error."))
	}
}
