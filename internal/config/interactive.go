package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/torfstack/chksum/internal/checksum"
)

var (
	inputFile = os.Stdin
)

func guidedInitialization(config *Config) error {
	scanner := bufio.NewScanner(inputFile)

	input, err := ask(scanner, fmt.Sprintf("Enter checksum algorithm %v [default: %s]", checksum.Algorithms(), config.Algorithm))
	if err != nil {
		return err
	}
	if input != "" {
		alg, err := checksum.ParseAlgorithm(input)
		if err != nil {
			return err
		}
		config.Algorithm = string(alg)
	}

	input, err = ask(scanner, fmt.Sprintf("Enter directory to watch [default: %s]", config.WatchDir))
	if err != nil {
		return err
	}
	if input != "" {
		config.WatchDir = input
	}

	input, err = ask(scanner, fmt.Sprintf("Enter number of hashing workers [default: %d]", config.Workers))
	if err != nil {
		return err
	}
	if input != "" {
		n, err := strconv.Atoi(input)
		if err != nil {
			return fmt.Errorf("invalid number of workers: %w", err)
		}
		config.Workers = n
	}

	input, err = ask(scanner, fmt.Sprintf("Enter watch debounce (e.g. 250ms, 1s) [default: %s]", config.Debounce))
	if err != nil {
		return err
	}
	if input != "" {
		duration, err := time.ParseDuration(input)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		config.Debounce = duration
	}

	return nil
}

func ask(scanner *bufio.Scanner, prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("could not read user input: %w", err)
		}
		return "", nil // EOF or closed input
	}
	return strings.TrimSpace(scanner.Text()), nil
}
