// Command stocktracker monitors stock prices and sends alerts and reports.
package main

import "stock-tracker/internal/cli"

func main() {
	cli.Execute()
}
