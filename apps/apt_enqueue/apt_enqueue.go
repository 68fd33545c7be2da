package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/network"
	"github.com/satori/go.uuid"
	"os"
)

type options struct {
	configFile    string
	job           string
	resourceId    string
	childProperty string
	childId       string
	status        string
	auditId       string
}

// apt_enqueue publishes one fixity job to nsqd, or prints queue
// stats. It talks only to nsqd, so it is safe to run while
// apt_fixity_service holds the database.
func main() {
	opts := parseCommandLine()
	config, err := models.LoadConfigFile(opts.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, err.Error())
		os.Exit(1)
	}
	client := network.NewNSQClient(config.NsqdHttpAddress)
	if opts.job == "stats" {
		printStats(client, config)
		return
	}
	topic, request, err := buildRequest(config, opts)
	if err == nil {
		err = request.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err := client.Enqueue(topic, request); err != nil {
		fmt.Fprintf(os.Stderr, "Error publishing to %s: %v\n", topic, err)
		os.Exit(2)
	}
	fmt.Printf("Published %s job to %s\n", opts.job, topic)
}

type validatable interface {
	Validate() error
}

func buildRequest(config *models.Config, opts *options) (string, validatable, error) {
	switch opts.job {
	case "local":
		return config.LocalFixityWorker.NsqTopic,
			&models.LocalFixityRequest{FileSetId: opts.resourceId}, nil
	case "cloud":
		return config.CloudFixityWorker.NsqTopic, &models.CloudFixityRequest{
			Status:        opts.status,
			ResourceId:    opts.resourceId,
			ChildProperty: opts.childProperty,
			ChildId:       opts.childId,
		}, nil
	case "repair-local":
		return config.RepairLocalFixityWorker.NsqTopic,
			&models.RepairRequest{ResourceId: opts.resourceId}, nil
	case "repair-cloud":
		return config.RepairCloudFixityWorker.NsqTopic, &models.RepairRequest{
			ResourceId:    opts.resourceId,
			ChildProperty: opts.childProperty,
			ChildId:       opts.childId,
		}, nil
	case "audit":
		auditId := opts.auditId
		if auditId == "" {
			auditId = uuid.NewV4().String()
		}
		return config.AuditWorker.NsqTopic,
			&models.AuditRequest{ResourceId: opts.resourceId, AuditId: auditId}, nil
	}
	return "", nil, fmt.Errorf("Unknown job type '%s'", opts.job)
}

func printStats(client *network.NSQClient, config *models.Config) {
	stats, err := client.GetStats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot get stats from nsqd: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("nsqd %s: %s\n", stats.Version, stats.Health)
	topics := []string{
		config.LocalFixityWorker.NsqTopic,
		config.CloudFixityWorker.NsqTopic,
		config.RepairLocalFixityWorker.NsqTopic,
		config.RepairCloudFixityWorker.NsqTopic,
		config.AuditWorker.NsqTopic,
	}
	for _, name := range topics {
		topic := stats.GetTopic(name)
		if topic == nil {
			fmt.Printf("%-30s (no messages yet)\n", name)
			continue
		}
		inFlight := 0
		for _, channel := range topic.Channels {
			inFlight += channel.InFlightCount
		}
		fmt.Printf("%-30s depth=%d in_flight=%d total=%d\n",
			name, topic.Depth, inFlight, topic.MessageCount)
	}
}

func parseCommandLine() *options {
	opts := &options{}
	flag.StringVar(&opts.configFile, "config", "", "Path to fixity config file")
	flag.StringVar(&opts.job, "job", "", "local, cloud, repair-local, repair-cloud, audit or stats")
	flag.StringVar(&opts.resourceId, "resource", "", "Resource or FileSet id")
	flag.StringVar(&opts.childProperty, "child-property", "", "metadata_node or binary_nodes")
	flag.StringVar(&opts.childId, "child-id", "", "Id of the preserved node or file")
	flag.StringVar(&opts.status, "status", "", "SUCCESS or FAILURE, for cloud jobs")
	flag.StringVar(&opts.auditId, "audit-id", "", "Audit id. Defaults to a new UUID.")
	flag.Parse()
	if opts.configFile == "" || opts.job == "" {
		printUsage()
		os.Exit(1)
	}
	return opts
}

// Tell the user about the program.
func printUsage() {
	message := `
apt_enqueue: Publishes a fixity job to nsqd, or prints queue stats.

Usage: apt_enqueue -config=<path to config file> -job=<job type> [options]

Job types:
  local         Check the local files of a FileSet. Needs -resource.
  cloud         Report a remote check. Needs -resource, -status,
                -child-property and -child-id.
  repair-local  Restore a FileSet's local files. Needs -resource.
  repair-cloud  Repair a preserved node. Needs -resource,
                -child-property and -child-id.
  audit         Audit one resource (-resource) or everything (no
                -resource). Takes an optional -audit-id.
  stats         Print depth and in-flight counts for each topic.
`
	fmt.Println(message)
}
