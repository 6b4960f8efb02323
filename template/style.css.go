package template

// StyleCSS is the shared stylesheet embedded in every EPUB.
const StyleCSS = `body { font-family: "Segoe UI", Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; margin: 20px; } ` +
	`h1 { text-align: center; color: #ff6600; } ` +
	`p { margin-bottom: 0.8em; text-indent: 1em; text-align: justify; }`

// ImageCSS keeps chapter images inside the page.
const ImageCSS = ` img { max-width: 100%; height: auto; display: block; margin: 1em auto; }`

// ChapterPageCSS styles the downloaded chapter files when opened in a browser.
const ChapterPageCSS = `body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; max-width: 800px; margin: 40px auto; padding: 20px; color: #333; }
h1 { text-align: center; color: #ff6600; }
img { max-width: 100%; height: auto; }`
