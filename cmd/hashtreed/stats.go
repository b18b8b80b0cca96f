package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/lauri000/hashtree/client"
)

// printStatsTable renders local storage and per-peer exchange stats
// (SPEC_FULL.md §10 "CLI ergonomics") to stdout.
func printStatsTable(cl *client.Client) {
	conn := cl.ProbeConnectivity()
	storage := cl.GetStorageStats()

	fmt.Printf("storage: %d items, %d/%d bytes\n", storage.Items, storage.Bytes, storage.MaxBytes)
	fmt.Printf("connectivity: %d follows peers, %d other peers, %d content servers (%d writable)\n\n",
		conn.FollowsPeers, conn.OtherPeers, conn.ContentServers, conn.WritableServers)

	peers := cl.RTC().Follows.Members()
	peers = append(peers, cl.RTC().Other.Members()...)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"peer", "sent", "received", "forwarded", "suppressed", "resolved", "rate-limited", "mismatches"})
	for _, peer := range peers {
		s := cl.PeerStats(peer)
		table.Append([]string{
			peer,
			fmt.Sprintf("%d", s.BytesSent),
			fmt.Sprintf("%d", s.BytesReceived),
			fmt.Sprintf("%d", s.ForwardedRequests),
			fmt.Sprintf("%d", s.ForwardedSuppressed),
			fmt.Sprintf("%d", s.ForwardedResolved),
			fmt.Sprintf("%d", s.ForwardedRateLimited),
			fmt.Sprintf("%d", s.ResponseMismatches),
		})
	}
	table.Render()
}
